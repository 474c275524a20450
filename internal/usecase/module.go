package usecase

import (
	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/domain/port"
)

// Module provides core business use cases to the fx container.
var Module = fx.Options(
	fx.Provide(
		newOperatorCredentials,
		newScheduleOptions,
		NewAuthUseCase,
		NewEffectDispatcher,
		NewOrderUseCase,
		NewScheduleUseCase,
		NewNotificationUseCase,
		fx.Annotate(NewOfferingCache, fx.As(new(port.OfferingCache))),
	),
)

func newOperatorCredentials(cfg *config.Config) OperatorCredentials {
	return OperatorCredentials{Login: cfg.OperatorLogin, PasswordHash: cfg.OperatorPasswordHash}
}

func newScheduleOptions(cfg *config.Config) ScheduleOptions {
	return ScheduleOptions{
		BatchSize:   cfg.ScheduleBatchSize,
		Workers:     cfg.WorkerPoolSize,
		Cooldown:    cfg.ChargeCooldown,
		MaxAttempts: cfg.MaxChargeAttempts,
		ChargeRate:  cfg.ChargeRate,
	}
}
