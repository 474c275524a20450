package kafka

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/domain/port"
	"github.com/polkiloo/coursemart/internal/usecase"
)

// Module exposes the Kafka publisher behind its ports and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(
		newFromConfig,
		func(p *Publisher) port.EventPublisher { return p },
		func(p *Publisher) port.OwnerNotifier { return p },
		func(p *Publisher) usecase.OfferingEvents { return p },
	),
	fx.Invoke(registerLifecycle),
)

type publisherParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newFromConfig(p publisherParams) *Publisher {
	return NewPublisher(p.Config.KafkaBrokers, p.Config.KafkaTopicPrefix, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, p *Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return p.Close()
		},
	})
}
