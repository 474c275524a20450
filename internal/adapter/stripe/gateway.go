// Package stripe charges installments off-session and decodes Stripe webhooks.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
)

// Metadata keys attached to every PaymentIntent.
const (
	MetadataOrderID       = "order_id"
	MetadataInstallmentID = "installment_id"
)

// zero-decimal currencies are charged in major units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Gateway implements port.PaymentGateway with Stripe PaymentIntents.
type Gateway struct {
	api    *stripecl.API
	logger *slog.Logger
}

// NewGateway builds a Stripe client. An empty apiURL keeps the Stripe default endpoint.
func NewGateway(secretKey, apiURL string, logger *slog.Logger) *Gateway {
	var backends *stripe.Backends
	if apiURL != "" {
		cfg := &stripe.BackendConfig{
			URL:               stripe.String(apiURL),
			HTTPClient:        &http.Client{Timeout: 30 * time.Second},
			MaxNetworkRetries: stripe.Int64(0),
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
		}
	}
	api := &stripecl.API{}
	api.Init(secretKey, backends)
	return &Gateway{api: api, logger: logger}
}

// Charge confirms an off-session PaymentIntent for the installment. The outcome
// arrives later through the webhook; a synchronous card decline is reported the same way.
func (g *Gateway) Charge(ctx context.Context, order *model.Order, inst *model.Installment, method *model.PaymentMethod) (*model.ChargeResult, error) {
	if !method.Usable() {
		return nil, fmt.Errorf("%w: order %s has no usable payment method", domainErrors.ErrInvalidOrder, order.ID)
	}
	amount, err := minorUnits(inst, order.Currency)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(strings.ToLower(order.Currency)),
		Customer:      stripe.String(method.ProviderCustomerID),
		PaymentMethod: stripe.String(method.ProviderMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, order.ID)
	params.AddMetadata(MetadataInstallmentID, inst.ID)
	params.SetIdempotencyKey(IdempotencyKey(inst.ID, inst.ChargeAttempts))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return g.chargeError(order, inst, err)
	}
	return &model.ChargeResult{ProviderReference: pi.ID, Status: string(pi.Status)}, nil
}

// Lookup reads the PaymentIntent behind an earlier charge and reports its outcome
// once Stripe settled it.
func (g *Gateway) Lookup(ctx context.Context, reference string) (*model.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		if unavailable(err) {
			return nil, fmt.Errorf("%w: %w", domainErrors.ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("stripe lookup %s: %w", reference, err)
	}
	return &model.ChargeResult{
		ProviderReference: pi.ID,
		Status:            string(pi.Status),
		Outcome:           outcomeOf(pi.Status),
	}, nil
}

func (g *Gateway) chargeError(order *model.Order, inst *model.Installment, err error) (*model.ChargeResult, error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		g.logger.Info("charge declined synchronously",
			slog.String("order_id", order.ID),
			slog.String("installment_id", inst.ID),
			slog.String("code", string(stripeErr.Code)),
		)
		res := &model.ChargeResult{Status: string(stripe.PaymentIntentStatusRequiresPaymentMethod)}
		if stripeErr.PaymentIntent != nil {
			res.ProviderReference = stripeErr.PaymentIntent.ID
		}
		return res, nil
	}
	if unavailable(err) {
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrGatewayUnavailable, err)
	}
	return nil, fmt.Errorf("stripe charge %s: %w", inst.ID, err)
}

// unavailable reports transport failures, throttling and Stripe side errors.
func unavailable(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return true
	}
	return stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
		stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
		stripeErr.Type == stripe.ErrorTypeAPI
}

// outcomeOf maps a PaymentIntent status to a settled outcome. An off-session
// intent back in requires_payment_method was declined.
func outcomeOf(status stripe.PaymentIntentStatus) model.PaymentOutcome {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentOutcomeSuccess
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return model.PaymentOutcomeFailure
	}
	return ""
}

// IdempotencyKey identifies one charge attempt of an installment.
func IdempotencyKey(installmentID string, attempt int) string {
	return fmt.Sprintf("installment:%s:attempt:%d", installmentID, attempt)
}

func minorUnits(inst *model.Installment, currency string) (int64, error) {
	if !inst.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: installment %s amount must be positive", domainErrors.ErrInvalidOrder, inst.ID)
	}
	amount := inst.Amount
	if !zeroDecimal[strings.ToLower(currency)] {
		amount = amount.Shift(2)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return 0, fmt.Errorf("%w: installment %s amount %s has sub-unit precision", domainErrors.ErrInvalidOrder, inst.ID, inst.Amount)
	}
	return amount.IntPart(), nil
}
