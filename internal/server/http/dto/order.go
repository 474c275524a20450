package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse describes an order with its schedule.
type OrderResponse struct {
	ID             string                `json:"id"`
	State          string                `json:"state"`
	Total          decimal.Decimal       `json:"total"`
	Currency       string                `json:"currency"`
	OwnerID        string                `json:"owner_id"`
	OrganizationID *string               `json:"organization_id,omitempty"`
	ProductID      string                `json:"product_id"`
	CourseID       *string               `json:"course_id,omitempty"`
	EnrollmentID   *string               `json:"enrollment_id,omitempty"`
	CourseRunIDs   []string              `json:"course_run_ids,omitempty"`
	HasPayment     bool                  `json:"has_payment_method"`
	Contract       *ContractPayload      `json:"contract,omitempty"`
	Schedule       []InstallmentResponse `json:"schedule"`
	Version        int64                 `json:"version"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// InstallmentResponse describes one scheduled payment.
type InstallmentResponse struct {
	ID                string          `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           string          `json:"due_date"`
	State             string          `json:"state"`
	ChargeAttempts    int             `json:"charge_attempts"`
	LastChargeAt      *time.Time      `json:"last_charge_at,omitempty"`
	ProviderReference string          `json:"provider_reference,omitempty"`
}

// EventResponse describes an audit record of a transition.
type EventResponse struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Rule       int       `json:"rule"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OutcomeResponse describes a single reconciliation step.
type OutcomeResponse struct {
	Transitioned bool             `json:"transitioned"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	Rule         int              `json:"rule,omitempty"`
	Effects      []EffectResponse `json:"effects,omitempty"`
}

// EffectResponse describes the status of one side effect.
type EffectResponse struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OrganizationRequest assigns a selling organization.
type OrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

// PaymentMethodRequest attaches a stored credential. The method id is assigned server side.
type PaymentMethodRequest struct {
	ProviderCustomerID string `json:"provider_customer_id"`
	ProviderMethodID   string `json:"provider_method_id"`
}

// ContractPayload carries signature facts.
type ContractPayload struct {
	ID                      string     `json:"id,omitempty"`
	SubmittedForSignatureOn *time.Time `json:"submitted_for_signature_on,omitempty"`
	StudentSignedOn         *time.Time `json:"student_signed_on,omitempty"`
	OrganizationSignedOn    *time.Time `json:"organization_signed_on,omitempty"`
}
