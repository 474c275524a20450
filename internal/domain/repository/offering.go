package repository

import "context"

// OfferingRepository tracks freshness markers of cached catalog offerings.
type OfferingRepository interface {
	Touch(ctx context.Context, productID string, courseID *string) error
}
