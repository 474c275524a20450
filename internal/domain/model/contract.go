package model

import "time"

// Contract holds the signature facts reported by the e-signature collaborator.
type Contract struct {
	ID                      string
	SubmittedForSignatureOn *time.Time
	StudentSignedOn         *time.Time
	OrganizationSignedOn    *time.Time
}

// HasUnsigned reports whether a contract exists that the learner has not signed.
func (c *Contract) HasUnsigned() bool {
	return c != nil && c.StudentSignedOn == nil
}

// HasSubmitted reports whether the contract was sent for signature and awaits the learner.
func (c *Contract) HasSubmitted() bool {
	return c != nil && c.SubmittedForSignatureOn != nil && c.StudentSignedOn == nil
}
