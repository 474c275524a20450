// Package port declares the collaborators the billing engine talks to.
package port

import (
	"context"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

// PaymentGateway initiates zero-interaction charges. It never confirms them;
// outcomes arrive asynchronously, or through Lookup of an earlier reference.
type PaymentGateway interface {
	Charge(ctx context.Context, order *model.Order, installment *model.Installment, method *model.PaymentMethod) (*model.ChargeResult, error)
	Lookup(ctx context.Context, reference string) (*model.ChargeResult, error)
}

// EnrollmentSynchronizer pushes enrollment mode changes to the delivery platform.
type EnrollmentSynchronizer interface {
	SyncMode(ctx context.Context, enrollment model.Enrollment) error
}

// Enrollments reads and changes learner enrollments owned by the delivery platform.
type Enrollments interface {
	ActiveForOrder(ctx context.Context, order *model.Order) ([]model.Enrollment, error)
	Get(ctx context.Context, id string) (*model.Enrollment, error)
	Enroll(ctx context.Context, userID, courseRunID string) (*model.Enrollment, error)
	Deactivate(ctx context.Context, enrollment model.Enrollment) error
}

// OfferingCache marks cached offerings stale.
type OfferingCache interface {
	Invalidate(ctx context.Context, productID string, courseID *string) error
}

// EventPublisher announces committed transitions to downstream consumers.
type EventPublisher interface {
	PublishTransition(ctx context.Context, change model.StateChange) error
}

// OwnerNotifier tells the order owner about settled payments.
type OwnerNotifier interface {
	NotifyPaymentSucceeded(ctx context.Context, order *model.Order, installment model.Installment) error
}
