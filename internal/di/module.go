package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/adapter/kafka"
	"github.com/polkiloo/coursemart/internal/adapter/lms"
	"github.com/polkiloo/coursemart/internal/adapter/stripe"
	"github.com/polkiloo/coursemart/internal/app"
	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/logger"
	"github.com/polkiloo/coursemart/internal/metrics"
	"github.com/polkiloo/coursemart/internal/pkg/auth"
	"github.com/polkiloo/coursemart/internal/server/http/router"
	"github.com/polkiloo/coursemart/internal/storage/postgres"
	"github.com/polkiloo/coursemart/internal/usecase"
)

// Module composes the complete application graph. Extra options are appended
// last so tests can replace any provided value.
func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		postgres.Module,
		lms.Module,
		stripe.Module,
		kafka.Module,
		usecase.Module,
		fx.Provide(
			func(v *stripe.WebhookVerifier) app.NotificationParser { return v },
			func(s *postgres.Storage) app.HealthChecker { return s },
		),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
