package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/domain/repository"
	"github.com/polkiloo/coursemart/internal/lifecycle"
)

const maxConflictRetries = 3

// Outcome describes what a single decision step did.
type Outcome struct {
	Transitioned bool
	From         model.OrderState
	To           model.OrderState
	Rule         int
	Effects      EffectReport
}

// OrderUseCase drives the order state machine: lock, decide, persist, then run effects.
type OrderUseCase struct {
	orders   repository.OrderRepository
	effects  *EffectDispatcher
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(orders repository.OrderRepository, effects *EffectDispatcher, recorder Recorder, logger *slog.Logger) *OrderUseCase {
	return &OrderUseCase{
		orders:   orders,
		effects:  effects,
		recorder: recorderOrNop(recorder),
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the stored order.
func (u *OrderUseCase) Get(ctx context.Context, id string) (*model.Order, error) {
	return u.orders.Get(ctx, id)
}

// History returns persisted transitions of the order, oldest first.
func (u *OrderUseCase) History(ctx context.Context, id string) ([]model.StateChange, error) {
	if _, err := u.orders.Get(ctx, id); err != nil {
		return nil, err
	}
	return u.orders.History(ctx, id)
}

// Advance applies at most one transition to the order.
func (u *OrderUseCase) Advance(ctx context.Context, id string) (Outcome, error) {
	out, _, err := u.step(ctx, id, nil, false)
	return out, err
}

// Reconcile calls Advance until no transition fires.
func (u *OrderUseCase) Reconcile(ctx context.Context, id string) ([]Outcome, error) {
	var outcomes []Outcome
	for range model.OrderStates {
		out, err := u.Advance(ctx, id)
		if err != nil {
			return outcomes, err
		}
		if !out.Transitioned {
			return outcomes, nil
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Cancel moves a non-terminal order to canceled.
func (u *OrderUseCase) Cancel(ctx context.Context, id string) (Outcome, error) {
	out, _, err := u.step(ctx, id, rejectTerminal, true)
	return out, err
}

// AssignOrganization sets the selling organization of a draft order and reconciles it.
func (u *OrderUseCase) AssignOrganization(ctx context.Context, id, organizationID string) ([]Outcome, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", domainErrors.ErrInvalidOrder)
	}
	return u.change(ctx, id, func(o *model.Order) error {
		if err := rejectTerminal(o); err != nil {
			return err
		}
		if o.State != model.OrderStateDraft {
			return fmt.Errorf("%w: organization can only be assigned in draft, order is %s", domainErrors.ErrInvalidState, o.State)
		}
		o.OrganizationID = &organizationID
		return nil
	})
}

// AttachPaymentMethod stores a new credential on the order and reconciles it.
func (u *OrderUseCase) AttachPaymentMethod(ctx context.Context, id string, method model.PaymentMethod) ([]Outcome, error) {
	if method.ProviderMethodID == "" {
		return nil, fmt.Errorf("%w: payment method reference is required", domainErrors.ErrInvalidOrder)
	}
	method.ID = uuid.NewString()
	return u.change(ctx, id, func(o *model.Order) error {
		if err := rejectTerminal(o); err != nil {
			return err
		}
		method.OwnerID = o.OwnerID
		o.PaymentMethod = &method
		o.Schedule.ResetChargeBudget()
		return nil
	})
}

// RecordContract stores signature facts reported for the order contract and reconciles it.
func (u *OrderUseCase) RecordContract(ctx context.Context, id string, contract model.Contract) ([]Outcome, error) {
	return u.change(ctx, id, func(o *model.Order) error {
		if err := rejectTerminal(o); err != nil {
			return err
		}
		if contract.ID == "" {
			if o.Contract != nil {
				contract.ID = o.Contract.ID
			} else {
				contract.ID = uuid.NewString()
			}
		}
		o.Contract = &contract
		return nil
	})
}

// change applies fn together with the first decision step, then reconciles.
func (u *OrderUseCase) change(ctx context.Context, id string, fn func(*model.Order) error) ([]Outcome, error) {
	first, _, err := u.step(ctx, id, fn, false)
	if err != nil {
		return nil, err
	}
	if !first.Transitioned {
		return nil, nil
	}
	rest, err := u.Reconcile(ctx, id)
	return append([]Outcome{first}, rest...), err
}

// step runs prepare and one decision under the order lock. Effects run after
// the transaction committed.
func (u *OrderUseCase) step(ctx context.Context, id string, prepare func(*model.Order) error, cancel bool) (Outcome, *model.Order, error) {
	var (
		out    Outcome
		change *model.StateChange
	)
	stored, err := u.withRetry(ctx, id, func(o *model.Order) (*model.StateChange, error) {
		out, change = Outcome{}, nil
		if prepare != nil {
			if err := prepare(o); err != nil {
				return nil, err
			}
		}
		facts := lifecycle.FactsOf(o)
		facts.CancelRequested = cancel
		tr, ok := lifecycle.Decide(facts)
		if !ok {
			return nil, nil
		}
		now := u.now().UTC()
		o.State = tr.To
		o.UpdatedAt = now
		out = Outcome{Transitioned: true, From: tr.From, To: tr.To, Rule: tr.Rule}
		change = &model.StateChange{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			From:       tr.From,
			To:         tr.To,
			Rule:       tr.Rule,
			OccurredAt: now,
		}
		return change, nil
	})
	if err != nil {
		return Outcome{}, nil, err
	}
	if change != nil {
		u.logger.Info("order transitioned",
			slog.String("order_id", id),
			slog.String("from", string(change.From)),
			slog.String("to", string(change.To)),
			slog.Int("rule", change.Rule),
		)
		u.recorder.ObserveTransition(string(change.From), string(change.To), change.Rule)
		out.Effects = u.effects.Dispatch(ctx, stored, *change)
	}
	return out, stored, nil
}

// withRetry repeats the whole read, decide and persist sequence on lock conflicts.
func (u *OrderUseCase) withRetry(ctx context.Context, id string, fn repository.MutateFunc) (*model.Order, error) {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		var stored *model.Order
		stored, err = u.orders.Update(ctx, id, fn)
		if !errors.Is(err, domainErrors.ErrConcurrentModification) {
			return stored, err
		}
		u.logger.Warn("order update conflict",
			slog.String("order_id", id),
			slog.Int("attempt", attempt),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
	return nil, err
}

func rejectTerminal(o *model.Order) error {
	if o.State.IsTerminal() {
		return fmt.Errorf("%w: order %s is %s", domainErrors.ErrTerminalOrder, o.ID, o.State)
	}
	return nil
}
