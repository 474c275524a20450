package model

import "time"

// PaymentMethod is a stored credential usable for zero-interaction charges.
type PaymentMethod struct {
	ID                 string
	OwnerID            string
	ProviderCustomerID string
	ProviderMethodID   string
	Revoked            bool
}

// Usable reports whether the credential exists and can be charged.
func (m *PaymentMethod) Usable() bool {
	return m != nil && !m.Revoked && m.ProviderMethodID != ""
}

// PaymentOutcome is the asynchronous result of a charge.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess PaymentOutcome = "success"
	PaymentOutcomeFailure PaymentOutcome = "failure"
)

// PaymentNotification is a provider callback about one installment charge.
type PaymentNotification struct {
	ProviderReference string
	InstallmentID     string
	Outcome           PaymentOutcome
	ReceivedAt        time.Time
}

// ChargeResult is returned by the gateway for an initiated or looked up charge.
// Outcome stays empty while the provider has not settled the charge.
type ChargeResult struct {
	ProviderReference string
	Status            string
	Outcome           PaymentOutcome
}
