package lms

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/domain/port"
)

// Module exposes the LMS client as enrollment ports to the fx graph.
var Module = fx.Options(
	fx.Provide(newClient),
	fx.Provide(
		func(c *HTTPClient) port.Enrollments { return c },
		func(c *HTTPClient) port.EnrollmentSynchronizer { return c },
	),
)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (*HTTPClient, error) {
	return NewHTTPClient(p.Config.LMSAddress, p.Logger)
}
