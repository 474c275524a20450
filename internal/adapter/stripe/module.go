package stripe

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/domain/port"
)

// Module exposes the Stripe gateway and webhook verifier to the fx graph.
var Module = fx.Provide(
	newGateway,
	newWebhookVerifier,
)

type gatewayParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newGateway(p gatewayParams) port.PaymentGateway {
	return NewGateway(p.Config.StripeSecretKey, p.Config.StripeAPIURL, p.Logger)
}

func newWebhookVerifier(cfg *config.Config) *WebhookVerifier {
	return NewWebhookVerifier(cfg.StripeWebhookSecret)
}
