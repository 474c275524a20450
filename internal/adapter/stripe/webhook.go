package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
)

const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
)

// WebhookVerifier turns signed Stripe events into payment notifications.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier constructs WebhookVerifier.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// ParseNotification verifies the signature and maps PaymentIntent outcome events.
// Other event types yield a nil notification.
func (v *WebhookVerifier) ParseNotification(payload []byte, signature string) (*model.PaymentNotification, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature header", domainErrors.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrInvalidSignature, err)
	}

	var outcome model.PaymentOutcome
	switch event.Type {
	case eventPaymentSucceeded:
		outcome = model.PaymentOutcomeSuccess
	case eventPaymentFailed:
		outcome = model.PaymentOutcomeFailure
	default:
		return nil, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", domainErrors.ErrInvalidNotification, event.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: decode payment intent: %w", domainErrors.ErrInvalidNotification, err)
	}

	return &model.PaymentNotification{
		ProviderReference: pi.ID,
		InstallmentID:     pi.Metadata[MetadataInstallmentID],
		Outcome:           outcome,
		ReceivedAt:        time.Unix(event.Created, 0).UTC(),
	}, nil
}
