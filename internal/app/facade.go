package app

import (
	"context"
	"time"

	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/usecase"
)

// NotificationParser verifies and decodes payment provider callbacks. A nil
// notification means the callback carries nothing to apply.
type NotificationParser interface {
	ParseNotification(payload []byte, signature string) (*model.PaymentNotification, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BillingFacade exposes use cases to transport and worker layers.
type BillingFacade struct {
	auth          *usecase.AuthUseCase
	orders        *usecase.OrderUseCase
	schedule      *usecase.ScheduleUseCase
	notifications *usecase.NotificationUseCase
	webhooks      NotificationParser
	health        HealthChecker
	now           func() time.Time
}

func NewBillingFacade(
	auth *usecase.AuthUseCase,
	orders *usecase.OrderUseCase,
	schedule *usecase.ScheduleUseCase,
	notifications *usecase.NotificationUseCase,
	webhooks NotificationParser,
	health HealthChecker,
) *BillingFacade {
	return &BillingFacade{
		auth:          auth,
		orders:        orders,
		schedule:      schedule,
		notifications: notifications,
		webhooks:      webhooks,
		health:        health,
		now:           time.Now,
	}
}

func (f *BillingFacade) Authenticate(ctx context.Context, login, password string) (string, error) {
	return f.auth.Authenticate(ctx, login, password)
}

func (f *BillingFacade) ParseToken(token string) (string, error) {
	return f.auth.ParseToken(token)
}

func (f *BillingFacade) Order(ctx context.Context, id string) (*model.Order, error) {
	return f.orders.Get(ctx, id)
}

func (f *BillingFacade) OrderEvents(ctx context.Context, id string) ([]model.StateChange, error) {
	return f.orders.History(ctx, id)
}

// Advance reconciles the order until no rule fires.
func (f *BillingFacade) Advance(ctx context.Context, id string) ([]usecase.Outcome, error) {
	return f.orders.Reconcile(ctx, id)
}

func (f *BillingFacade) Cancel(ctx context.Context, id string) (usecase.Outcome, error) {
	return f.orders.Cancel(ctx, id)
}

func (f *BillingFacade) AssignOrganization(ctx context.Context, id, organizationID string) ([]usecase.Outcome, error) {
	return f.orders.AssignOrganization(ctx, id, organizationID)
}

func (f *BillingFacade) AttachPaymentMethod(ctx context.Context, id string, method model.PaymentMethod) ([]usecase.Outcome, error) {
	return f.orders.AttachPaymentMethod(ctx, id, method)
}

func (f *BillingFacade) RecordContract(ctx context.Context, id string, contract model.Contract) ([]usecase.Outcome, error) {
	return f.orders.RecordContract(ctx, id, contract)
}

// RunSchedule processes installments due at the current time.
func (f *BillingFacade) RunSchedule(ctx context.Context) (usecase.ScheduleReport, error) {
	return f.schedule.ProcessDue(ctx, f.now().UTC())
}

func (f *BillingFacade) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	n, err := f.webhooks.ParseNotification(payload, signature)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	return f.notifications.Handle(ctx, *n)
}

func (f *BillingFacade) HealthCheck(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}
