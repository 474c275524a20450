// Package facades holds stubs of application facades for transport and worker tests.
package facades

import (
	"context"
	"sync"

	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/usecase"
)

// BillingFacadeStub implements the HTTP facade with overridable behaviour.
// Unset functions return zero values.
type BillingFacadeStub struct {
	AuthenticateFn        func(ctx context.Context, login, password string) (string, error)
	ParseTokenFn          func(token string) (string, error)
	OrderFn               func(ctx context.Context, id string) (*model.Order, error)
	OrderEventsFn         func(ctx context.Context, id string) ([]model.StateChange, error)
	AdvanceFn             func(ctx context.Context, id string) ([]usecase.Outcome, error)
	CancelFn              func(ctx context.Context, id string) (usecase.Outcome, error)
	AssignOrganizationFn  func(ctx context.Context, id, organizationID string) ([]usecase.Outcome, error)
	AttachPaymentMethodFn func(ctx context.Context, id string, method model.PaymentMethod) ([]usecase.Outcome, error)
	RecordContractFn      func(ctx context.Context, id string, contract model.Contract) ([]usecase.Outcome, error)
	RunScheduleFn         func(ctx context.Context) (usecase.ScheduleReport, error)
	HandleWebhookFn       func(ctx context.Context, payload []byte, signature string) error
	HealthCheckFn         func(ctx context.Context) error
}

func (s BillingFacadeStub) Authenticate(ctx context.Context, login, password string) (string, error) {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(ctx, login, password)
	}
	return "token", nil
}

func (s BillingFacadeStub) ParseToken(token string) (string, error) {
	if s.ParseTokenFn != nil {
		return s.ParseTokenFn(token)
	}
	return "operator", nil
}

func (s BillingFacadeStub) Order(ctx context.Context, id string) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return &model.Order{ID: id}, nil
}

func (s BillingFacadeStub) OrderEvents(ctx context.Context, id string) ([]model.StateChange, error) {
	if s.OrderEventsFn != nil {
		return s.OrderEventsFn(ctx, id)
	}
	return nil, nil
}

func (s BillingFacadeStub) Advance(ctx context.Context, id string) ([]usecase.Outcome, error) {
	if s.AdvanceFn != nil {
		return s.AdvanceFn(ctx, id)
	}
	return nil, nil
}

func (s BillingFacadeStub) Cancel(ctx context.Context, id string) (usecase.Outcome, error) {
	if s.CancelFn != nil {
		return s.CancelFn(ctx, id)
	}
	return usecase.Outcome{}, nil
}

func (s BillingFacadeStub) AssignOrganization(ctx context.Context, id, organizationID string) ([]usecase.Outcome, error) {
	if s.AssignOrganizationFn != nil {
		return s.AssignOrganizationFn(ctx, id, organizationID)
	}
	return nil, nil
}

func (s BillingFacadeStub) AttachPaymentMethod(ctx context.Context, id string, method model.PaymentMethod) ([]usecase.Outcome, error) {
	if s.AttachPaymentMethodFn != nil {
		return s.AttachPaymentMethodFn(ctx, id, method)
	}
	return nil, nil
}

func (s BillingFacadeStub) RecordContract(ctx context.Context, id string, contract model.Contract) ([]usecase.Outcome, error) {
	if s.RecordContractFn != nil {
		return s.RecordContractFn(ctx, id, contract)
	}
	return nil, nil
}

func (s BillingFacadeStub) RunSchedule(ctx context.Context) (usecase.ScheduleReport, error) {
	if s.RunScheduleFn != nil {
		return s.RunScheduleFn(ctx)
	}
	return usecase.ScheduleReport{}, nil
}

func (s BillingFacadeStub) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.HandleWebhookFn != nil {
		return s.HandleWebhookFn(ctx, payload, signature)
	}
	return nil
}

func (s BillingFacadeStub) HealthCheck(ctx context.Context) error {
	if s.HealthCheckFn != nil {
		return s.HealthCheckFn(ctx)
	}
	return nil
}

// DueProcessorStub records schedule passes run by the worker.
type DueProcessorStub struct {
	sync.Mutex
	Calls  int
	Report usecase.ScheduleReport
	Err    error
	Fn     func(ctx context.Context) (usecase.ScheduleReport, error)
}

// RunSchedule counts the call and returns the configured result.
func (s *DueProcessorStub) RunSchedule(ctx context.Context) (usecase.ScheduleReport, error) {
	s.Lock()
	s.Calls++
	fn := s.Fn
	s.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return s.Report, s.Err
}

// CallCount returns the number of passes observed so far.
func (s *DueProcessorStub) CallCount() int {
	s.Lock()
	defer s.Unlock()
	return s.Calls
}
