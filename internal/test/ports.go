package test

import (
	"context"
	"sync"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
)

// ChargeCall captures a PaymentGateway.Charge invocation.
type ChargeCall struct {
	OrderID       string
	InstallmentID string
	Attempt       int
	MethodID      string
}

// GatewayStub records charges and answers with a provider reference per installment.
// Lookups report the charge as still processing unless LookupFn says otherwise.
type GatewayStub struct {
	mu       sync.Mutex
	ChargeFn func(context.Context, *model.Order, *model.Installment) (*model.ChargeResult, error)
	LookupFn func(context.Context, string) (*model.ChargeResult, error)
	Calls    []ChargeCall
	Lookups  []string
}

func (g *GatewayStub) Charge(ctx context.Context, order *model.Order, inst *model.Installment, method *model.PaymentMethod) (*model.ChargeResult, error) {
	g.mu.Lock()
	call := ChargeCall{OrderID: order.ID, InstallmentID: inst.ID, Attempt: inst.ChargeAttempts}
	if method != nil {
		call.MethodID = method.ProviderMethodID
	}
	g.Calls = append(g.Calls, call)
	g.mu.Unlock()

	if g.ChargeFn != nil {
		return g.ChargeFn(ctx, order, inst)
	}
	return &model.ChargeResult{ProviderReference: "pi_" + inst.ID, Status: "processing"}, nil
}

func (g *GatewayStub) Lookup(ctx context.Context, reference string) (*model.ChargeResult, error) {
	g.mu.Lock()
	g.Lookups = append(g.Lookups, reference)
	g.mu.Unlock()

	if g.LookupFn != nil {
		return g.LookupFn(ctx, reference)
	}
	return &model.ChargeResult{ProviderReference: reference, Status: "processing"}, nil
}

// LookupCalls returns a copy of looked up references.
func (g *GatewayStub) LookupCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Lookups...)
}

// ChargeCalls returns a copy of recorded calls.
func (g *GatewayStub) ChargeCalls() []ChargeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ChargeCall(nil), g.Calls...)
}

// EnrollmentsStub keeps enrollments in memory, keyed by user.
type EnrollmentsStub struct {
	mu            sync.Mutex
	Enrollments   []model.Enrollment
	ActiveErr     error
	EnrollErr     error
	Deactivated   []string
	DeactivateErr map[string]error
}

func (s *EnrollmentsStub) ActiveForOrder(_ context.Context, order *model.Order) ([]model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActiveErr != nil {
		return nil, s.ActiveErr
	}
	var out []model.Enrollment
	for _, e := range s.Enrollments {
		if !e.IsActive || e.UserID != order.OwnerID {
			continue
		}
		for _, run := range order.CourseRunIDs {
			if e.CourseRunID == run {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (s *EnrollmentsStub) Get(_ context.Context, id string) (*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.Enrollments {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *EnrollmentsStub) Enroll(_ context.Context, userID, courseRunID string) (*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EnrollErr != nil {
		return nil, s.EnrollErr
	}
	e := model.Enrollment{
		ID:          "enr-" + userID + "-" + courseRunID,
		UserID:      userID,
		CourseRunID: courseRunID,
		Mode:        model.EnrollmentModeVerified,
		IsActive:    true,
	}
	s.Enrollments = append(s.Enrollments, e)
	return &e, nil
}

func (s *EnrollmentsStub) Deactivate(_ context.Context, enrollment model.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.DeactivateErr[enrollment.ID]; err != nil {
		return err
	}
	for i := range s.Enrollments {
		if s.Enrollments[i].ID == enrollment.ID {
			s.Enrollments[i].IsActive = false
		}
	}
	s.Deactivated = append(s.Deactivated, enrollment.ID)
	return nil
}

// SynchronizerStub records pushed enrollments.
type SynchronizerStub struct {
	mu     sync.Mutex
	Errs   map[string]error
	Synced []model.Enrollment
}

func (s *SynchronizerStub) SyncMode(_ context.Context, enrollment model.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Errs[enrollment.ID]; err != nil {
		return err
	}
	s.Synced = append(s.Synced, enrollment)
	return nil
}

// SyncedIDs returns ids of synchronized enrollments in call order.
func (s *SynchronizerStub) SyncedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.Synced))
	for _, e := range s.Synced {
		ids = append(ids, e.ID)
	}
	return ids
}

// OfferingCacheStub records invalidated products.
type OfferingCacheStub struct {
	mu          sync.Mutex
	Err         error
	Invalidated []string
}

func (s *OfferingCacheStub) Invalidate(_ context.Context, productID string, _ *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Invalidated = append(s.Invalidated, productID)
	return nil
}

// PublisherStub records published transitions, offering invalidations and owner notifications.
type PublisherStub struct {
	mu          sync.Mutex
	Err         error
	Transitions []model.StateChange
	Offerings   []string
	Payments    []string
}

func (p *PublisherStub) PublishTransition(_ context.Context, change model.StateChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Transitions = append(p.Transitions, change)
	return nil
}

func (p *PublisherStub) PublishOfferingInvalidated(_ context.Context, productID string, _ *string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Offerings = append(p.Offerings, productID)
	return nil
}

func (p *PublisherStub) NotifyPaymentSucceeded(_ context.Context, _ *model.Order, inst model.Installment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Payments = append(p.Payments, inst.ID)
	return nil
}

// PublishedTransitions returns a copy of published transitions.
func (p *PublisherStub) PublishedTransitions() []model.StateChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.StateChange(nil), p.Transitions...)
}

// RecorderStub counts engine measurements.
type RecorderStub struct {
	mu            sync.Mutex
	Transitions   int
	Effects       map[string]int
	Charges       map[string]int
	Notifications map[string]int
}

func (r *RecorderStub) ObserveTransition(string, string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transitions++
}

func (r *RecorderStub) ObserveEffect(kind, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Effects == nil {
		r.Effects = make(map[string]int)
	}
	r.Effects[kind+"/"+status]++
}

func (r *RecorderStub) ObserveCharge(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Charges == nil {
		r.Charges = make(map[string]int)
	}
	r.Charges[result]++
}

func (r *RecorderStub) ObserveNotification(outcome, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Notifications == nil {
		r.Notifications = make(map[string]int)
	}
	r.Notifications[outcome+"/"+result]++
}
