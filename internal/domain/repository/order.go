package repository

import (
	"context"
	"time"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

// MutateFunc changes a locked copy of an order. A non-nil change is persisted as
// an audit event in the same transaction.
type MutateFunc func(order *model.Order) (*model.StateChange, error)

// DueQuery selects orders holding at least one collectable installment.
type DueQuery struct {
	Now         time.Time
	Cooldown    time.Duration
	MaxAttempts int
	Limit       int
}

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*model.Order, error)
	// Update loads the order under an exclusive per-order lock, applies fn and
	// persists the result atomically. It returns the order as stored.
	Update(ctx context.Context, id string, fn MutateFunc) (*model.Order, error)
	// ListDue returns ids ordered by their earliest collectable due date.
	ListDue(ctx context.Context, q DueQuery) ([]string, error)
	FindByInstallment(ctx context.Context, installmentID string) (string, error)
	FindByReference(ctx context.Context, reference string) (orderID, installmentID string, err error)
	History(ctx context.Context, id string) ([]model.StateChange, error)
}
