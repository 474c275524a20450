package handlers

import (
	"context"

	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/usecase"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Authenticate(ctx context.Context, login, password string) (string, error)
	ParseToken(token string) (string, error)
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	Order(ctx context.Context, id string) (*model.Order, error)
	OrderEvents(ctx context.Context, id string) ([]model.StateChange, error)
	Advance(ctx context.Context, id string) ([]usecase.Outcome, error)
	Cancel(ctx context.Context, id string) (usecase.Outcome, error)
	AssignOrganization(ctx context.Context, id, organizationID string) ([]usecase.Outcome, error)
	AttachPaymentMethod(ctx context.Context, id string, method model.PaymentMethod) ([]usecase.Outcome, error)
	RecordContract(ctx context.Context, id string, contract model.Contract) ([]usecase.Outcome, error)
}

// ScheduleFacade runs payment schedule passes on demand.
type ScheduleFacade interface {
	RunSchedule(ctx context.Context) (usecase.ScheduleReport, error)
}

// WebhookFacade applies payment provider callbacks.
type WebhookFacade interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
}

// HealthFacade reports readiness of backing services.
type HealthFacade interface {
	HealthCheck(ctx context.Context) error
}

// BillingFacade aggregates the full set of operations used across handlers.
type BillingFacade interface {
	AuthFacade
	OrderFacade
	ScheduleFacade
	WebhookFacade
	HealthFacade
}
