package usecase

import (
	"context"
	"fmt"

	"github.com/polkiloo/coursemart/internal/domain/repository"
)

// OfferingEvents announces stale offerings to downstream caches.
type OfferingEvents interface {
	PublishOfferingInvalidated(ctx context.Context, productID string, courseID *string) error
}

// OfferingCache bumps the stored freshness marker of an offering and announces it.
type OfferingCache struct {
	offerings repository.OfferingRepository
	events    OfferingEvents
}

// NewOfferingCache constructs OfferingCache.
func NewOfferingCache(offerings repository.OfferingRepository, events OfferingEvents) *OfferingCache {
	return &OfferingCache{offerings: offerings, events: events}
}

// Invalidate marks the product offering stale.
func (c *OfferingCache) Invalidate(ctx context.Context, productID string, courseID *string) error {
	if err := c.offerings.Touch(ctx, productID, courseID); err != nil {
		return fmt.Errorf("touch offering: %w", err)
	}
	if err := c.events.PublishOfferingInvalidated(ctx, productID, courseID); err != nil {
		return fmt.Errorf("publish offering invalidation: %w", err)
	}
	return nil
}
