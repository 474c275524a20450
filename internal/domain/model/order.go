package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
)

// OrderState describes the lifecycle position of an order.
type OrderState string

const (
	OrderStateDraft               OrderState = "draft"
	OrderStateAssigned            OrderState = "assigned"
	OrderStateToSavePaymentMethod OrderState = "to_save_payment_method"
	OrderStateToSign              OrderState = "to_sign"
	OrderStateSigning             OrderState = "signing"
	OrderStatePending             OrderState = "pending"
	OrderStatePendingPayment      OrderState = "pending_payment"
	OrderStateNoPayment           OrderState = "no_payment"
	OrderStateFailedPayment       OrderState = "failed_payment"
	OrderStateCompleted           OrderState = "completed"
	OrderStateCanceled            OrderState = "canceled"
)

// OrderStates lists every valid state, initial first.
var OrderStates = []OrderState{
	OrderStateDraft,
	OrderStateAssigned,
	OrderStateToSavePaymentMethod,
	OrderStateToSign,
	OrderStateSigning,
	OrderStatePending,
	OrderStatePendingPayment,
	OrderStateNoPayment,
	OrderStateFailedPayment,
	OrderStateCompleted,
	OrderStateCanceled,
}

// ParseOrderState converts raw value into a known state.
func ParseOrderState(raw string) (OrderState, error) {
	for _, s := range OrderStates {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domainErrors.ErrInvalidState, raw)
}

// IsTerminal reports whether no further transition can leave the state.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateCompleted || s == OrderStateCanceled
}

// Order is a purchase of a course run, certification or enrollment upgrade.
type Order struct {
	ID             string
	State          OrderState
	Total          decimal.Decimal
	Currency       string
	OwnerID        string
	OrganizationID *string
	ProductID      string
	CourseID       *string
	EnrollmentID   *string
	CourseRunIDs   []string
	OfferRuleID    *string
	PaymentMethod  *PaymentMethod
	Contract       *Contract
	Schedule       PaymentSchedule
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsFree reports whether nothing has to be collected for the order.
func (o *Order) IsFree() bool {
	return o.Total.IsZero()
}

// HasPaymentMethod reports whether a usable stored credential is attached.
func (o *Order) HasPaymentMethod() bool {
	return o.PaymentMethod.Usable()
}

// HasUnsignedContract reports whether the learner still has to sign.
func (o *Order) HasUnsignedContract() bool {
	return o.Contract.HasUnsigned()
}

// HasSubmittedContract reports whether the contract awaits the learner signature.
func (o *Order) HasSubmittedContract() bool {
	return o.Contract.HasSubmitted()
}

// HasOrganization reports whether a selling organization was assigned.
func (o *Order) HasOrganization() bool {
	return o.OrganizationID != nil && *o.OrganizationID != ""
}

// IsUpgrade reports whether the order upgrades an existing enrollment.
func (o *Order) IsUpgrade() bool {
	return o.EnrollmentID != nil && *o.EnrollmentID != ""
}

// Validate checks structural invariants of the order.
func (o *Order) Validate() error {
	if _, err := ParseOrderState(string(o.State)); err != nil {
		return err
	}
	if o.ID == "" || o.OwnerID == "" || o.ProductID == "" {
		return fmt.Errorf("%w: id, owner and product are required", domainErrors.ErrInvalidOrder)
	}
	hasCourse := o.CourseID != nil && *o.CourseID != ""
	if hasCourse == o.IsUpgrade() {
		return fmt.Errorf("%w: exactly one of course or enrollment must be set", domainErrors.ErrInvalidOrder)
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: negative total", domainErrors.ErrInvalidOrder)
	}
	if o.IsFree() && len(o.Schedule) > 0 {
		return fmt.Errorf("%w: free order carries a payment schedule", domainErrors.ErrInvalidOrder)
	}
	return o.Schedule.Validate()
}

// StateChange is the audit record written with each transition.
type StateChange struct {
	ID         string
	OrderID    string
	From       OrderState
	To         OrderState
	Rule       int
	OccurredAt time.Time
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.OrganizationID = clonePtr(o.OrganizationID)
	c.CourseID = clonePtr(o.CourseID)
	c.EnrollmentID = clonePtr(o.EnrollmentID)
	c.OfferRuleID = clonePtr(o.OfferRuleID)
	if o.CourseRunIDs != nil {
		c.CourseRunIDs = append([]string(nil), o.CourseRunIDs...)
	}
	if o.PaymentMethod != nil {
		pm := *o.PaymentMethod
		c.PaymentMethod = &pm
	}
	if o.Contract != nil {
		ct := *o.Contract
		ct.SubmittedForSignatureOn = clonePtr(o.Contract.SubmittedForSignatureOn)
		ct.StudentSignedOn = clonePtr(o.Contract.StudentSignedOn)
		ct.OrganizationSignedOn = clonePtr(o.Contract.OrganizationSignedOn)
		c.Contract = &ct
	}
	c.Schedule = o.Schedule.Clone()
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
