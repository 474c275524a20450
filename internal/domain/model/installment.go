package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
)

// InstallmentState describes settlement of a single scheduled payment.
type InstallmentState string

const (
	InstallmentStatePending InstallmentState = "pending"
	InstallmentStatePaid    InstallmentState = "paid"
	InstallmentStateRefused InstallmentState = "refused"
)

// ParseInstallmentState converts raw value into a known installment state.
func ParseInstallmentState(raw string) (InstallmentState, error) {
	switch s := InstallmentState(raw); s {
	case InstallmentStatePending, InstallmentStatePaid, InstallmentStateRefused:
		return s, nil
	}
	return "", fmt.Errorf("%w: installment %q", domainErrors.ErrInvalidState, raw)
}

// IsTerminal reports whether the installment was settled one way or the other.
func (s InstallmentState) IsTerminal() bool {
	return s == InstallmentStatePaid || s == InstallmentStateRefused
}

// Installment is one scheduled partial payment of an order total.
type Installment struct {
	ID                string
	Amount            decimal.Decimal
	DueDate           time.Time
	State             InstallmentState
	ChargeAttempts    int
	LastChargeAt      *time.Time
	ProviderReference string
}

// IsDue reports whether the installment is pending and due on or before now.
func (i Installment) IsDue(now time.Time) bool {
	return i.State == InstallmentStatePending && !dateOf(i.DueDate).After(dateOf(now))
}

// InCooldown reports whether a charge was attempted less than cooldown ago.
func (i Installment) InCooldown(now time.Time, cooldown time.Duration) bool {
	return i.LastChargeAt != nil && now.Sub(*i.LastChargeAt) < cooldown
}

// Collectable reports whether a schedule pass has work on the installment: it is
// due, out of cooldown, and either has charge attempts left or a charge in flight.
func (i Installment) Collectable(now time.Time, cooldown time.Duration, maxAttempts int) bool {
	if !i.IsDue(now) || i.InCooldown(now, cooldown) {
		return false
	}
	return i.ChargeAttempts < maxAttempts || i.ProviderReference != ""
}

// PaymentSchedule is the ordered installment ledger of an order.
// Order is fixed at creation (ascending due date) and never re-sorted.
type PaymentSchedule []Installment

// Validate checks ordering and identity invariants.
func (s PaymentSchedule) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for idx, inst := range s {
		if inst.ID == "" {
			return fmt.Errorf("%w: installment %d has no id", domainErrors.ErrInvalidOrder, idx)
		}
		if _, dup := seen[inst.ID]; dup {
			return fmt.Errorf("%w: duplicate installment %s", domainErrors.ErrInvalidOrder, inst.ID)
		}
		seen[inst.ID] = struct{}{}
		if inst.Amount.IsNegative() {
			return fmt.Errorf("%w: installment %s has negative amount", domainErrors.ErrInvalidOrder, inst.ID)
		}
		if _, err := ParseInstallmentState(string(inst.State)); err != nil {
			return err
		}
		if idx > 0 && inst.DueDate.Before(s[idx-1].DueDate) {
			return fmt.Errorf("%w: schedule not sorted by due date", domainErrors.ErrInvalidOrder)
		}
	}
	return nil
}

// Find returns the installment with the given id.
func (s PaymentSchedule) Find(id string) (*Installment, error) {
	for i := range s {
		if s[i].ID == id {
			return &s[i], nil
		}
	}
	return nil, fmt.Errorf("installment %s: %w", id, domainErrors.ErrNotFound)
}

// MarkPaid settles the installment as paid. Returns false when it was already terminal.
func (s PaymentSchedule) MarkPaid(id string) (bool, error) {
	return s.settle(id, InstallmentStatePaid)
}

// MarkRefused settles the installment as refused. Returns false when it was already terminal.
func (s PaymentSchedule) MarkRefused(id string) (bool, error) {
	return s.settle(id, InstallmentStateRefused)
}

func (s PaymentSchedule) settle(id string, state InstallmentState) (bool, error) {
	inst, err := s.Find(id)
	if err != nil {
		return false, err
	}
	if inst.State.IsTerminal() {
		return false, nil
	}
	inst.State = state
	return true, nil
}

// FirstPending returns the earliest pending installment, nil when none.
func (s PaymentSchedule) FirstPending() *Installment {
	for i := range s {
		if s[i].State == InstallmentStatePending {
			return &s[i]
		}
	}
	return nil
}

// First returns the first installment of the schedule, nil when empty.
func (s PaymentSchedule) First() *Installment {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}

// AllPaid reports whether every installment is paid. An empty schedule is not paid.
func (s PaymentSchedule) AllPaid() bool {
	if len(s) == 0 {
		return false
	}
	for _, inst := range s {
		if inst.State != InstallmentStatePaid {
			return false
		}
	}
	return true
}

// AnyRefused reports whether an installment was refused, optionally ignoring the first one.
func (s PaymentSchedule) AnyRefused(excludingFirst bool) bool {
	for idx, inst := range s {
		if excludingFirst && idx == 0 {
			continue
		}
		if inst.State == InstallmentStateRefused {
			return true
		}
	}
	return false
}

// HasPending reports whether at least one installment is still pending.
func (s PaymentSchedule) HasPending() bool {
	return s.FirstPending() != nil
}

// ResetChargeBudget clears attempt bookkeeping of pending installments that have
// no charge in flight.
func (s PaymentSchedule) ResetChargeBudget() {
	for i := range s {
		if s[i].State == InstallmentStatePending && s[i].ProviderReference == "" {
			s[i].ChargeAttempts = 0
			s[i].LastChargeAt = nil
		}
	}
}

// DuePending returns ids of pending installments due on or before now, in schedule order.
func (s PaymentSchedule) DuePending(now time.Time) []string {
	var ids []string
	for _, inst := range s {
		if inst.IsDue(now) {
			ids = append(ids, inst.ID)
		}
	}
	return ids
}

// Clone returns a deep copy so callers can diff before/after mutations.
func (s PaymentSchedule) Clone() PaymentSchedule {
	if s == nil {
		return nil
	}
	out := make(PaymentSchedule, len(s))
	for i, inst := range s {
		if inst.LastChargeAt != nil {
			at := *inst.LastChargeAt
			inst.LastChargeAt = &at
		}
		out[i] = inst
	}
	return out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
