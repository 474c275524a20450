package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBody        = 64 << 10
)

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	facade WebhookFacade
	logger *slog.Logger
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(facade WebhookFacade, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{facade: facade, logger: logger}
}

// Stripe handles POST /webhooks/stripe. Non-2xx answers make the provider retry.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}

	if err := h.facade.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader)); err != nil {
		if statusOf(err) == http.StatusInternalServerError {
			h.logger.Error("stripe webhook failed", slog.String("error", err.Error()))
		}
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
