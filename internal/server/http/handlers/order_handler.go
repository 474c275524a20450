package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/server/http/dto"
	"github.com/polkiloo/coursemart/internal/usecase"
)

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade OrderFacade
	logger *slog.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{facade: facade, logger: logger}
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.facade.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Events handles GET /api/orders/:id/events.
func (h *OrderHandler) Events(c *gin.Context) {
	history, err := h.facade.OrderEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(history) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]dto.EventResponse, 0, len(history))
	for _, ev := range history {
		resp = append(resp, dto.EventResponse{
			ID:         ev.ID,
			From:       string(ev.From),
			To:         string(ev.To),
			Rule:       ev.Rule,
			OccurredAt: ev.OccurredAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Advance handles POST /api/orders/:id/advance.
func (h *OrderHandler) Advance(c *gin.Context) {
	h.audit(c, "advance")
	outcomes, err := h.facade.Advance(c.Request.Context(), c.Param("id"))
	h.respondOutcomes(c, outcomes, err)
}

// Cancel handles POST /api/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.audit(c, "cancel")
	out, err := h.facade.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcomeResponse(out))
}

// AssignOrganization handles POST /api/orders/:id/organization.
func (h *OrderHandler) AssignOrganization(c *gin.Context) {
	var req dto.OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	h.audit(c, "assign_organization")
	outcomes, err := h.facade.AssignOrganization(c.Request.Context(), c.Param("id"), req.OrganizationID)
	h.respondOutcomes(c, outcomes, err)
}

// AttachPaymentMethod handles POST /api/orders/:id/payment-method.
func (h *OrderHandler) AttachPaymentMethod(c *gin.Context) {
	var req dto.PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	h.audit(c, "attach_payment_method")
	method := model.PaymentMethod{
		ProviderCustomerID: req.ProviderCustomerID,
		ProviderMethodID:   req.ProviderMethodID,
	}
	outcomes, err := h.facade.AttachPaymentMethod(c.Request.Context(), c.Param("id"), method)
	h.respondOutcomes(c, outcomes, err)
}

// RecordContract handles POST /api/orders/:id/contract.
func (h *OrderHandler) RecordContract(c *gin.Context) {
	var req dto.ContractPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	h.audit(c, "record_contract")
	contract := model.Contract{
		ID:                      req.ID,
		SubmittedForSignatureOn: req.SubmittedForSignatureOn,
		StudentSignedOn:         req.StudentSignedOn,
		OrganizationSignedOn:    req.OrganizationSignedOn,
	}
	outcomes, err := h.facade.RecordContract(c.Request.Context(), c.Param("id"), contract)
	h.respondOutcomes(c, outcomes, err)
}

func (h *OrderHandler) audit(c *gin.Context, action string) {
	h.logger.Info("operator action",
		slog.String("operator", CurrentOperator(c)),
		slog.String("action", action),
		slog.String("order_id", c.Param("id")),
	)
}

func (h *OrderHandler) respondOutcomes(c *gin.Context, outcomes []usecase.Outcome, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := make([]dto.OutcomeResponse, 0, len(outcomes))
	for _, out := range outcomes {
		resp = append(resp, toOutcomeResponse(out))
	}
	c.JSON(http.StatusOK, resp)
}

func toOutcomeResponse(out usecase.Outcome) dto.OutcomeResponse {
	resp := dto.OutcomeResponse{
		Transitioned: out.Transitioned,
		From:         string(out.From),
		To:           string(out.To),
		Rule:         out.Rule,
	}
	for _, res := range out.Effects.Results {
		effect := dto.EffectResponse{Kind: string(res.Kind), Target: res.Target, Status: string(res.Status)}
		if res.Err != nil {
			effect.Error = res.Err.Error()
		}
		resp.Effects = append(resp.Effects, effect)
	}
	return resp
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:             order.ID,
		State:          string(order.State),
		Total:          order.Total,
		Currency:       order.Currency,
		OwnerID:        order.OwnerID,
		OrganizationID: order.OrganizationID,
		ProductID:      order.ProductID,
		CourseID:       order.CourseID,
		EnrollmentID:   order.EnrollmentID,
		CourseRunIDs:   order.CourseRunIDs,
		HasPayment:     order.HasPaymentMethod(),
		Schedule:       make([]dto.InstallmentResponse, 0, len(order.Schedule)),
		Version:        order.Version,
		UpdatedAt:      order.UpdatedAt,
	}
	if order.Contract != nil {
		resp.Contract = &dto.ContractPayload{
			ID:                      order.Contract.ID,
			SubmittedForSignatureOn: order.Contract.SubmittedForSignatureOn,
			StudentSignedOn:         order.Contract.StudentSignedOn,
			OrganizationSignedOn:    order.Contract.OrganizationSignedOn,
		}
	}
	for _, inst := range order.Schedule {
		resp.Schedule = append(resp.Schedule, dto.InstallmentResponse{
			ID:                inst.ID,
			Amount:            inst.Amount,
			DueDate:           inst.DueDate.Format(time.DateOnly),
			State:             string(inst.State),
			ChargeAttempts:    inst.ChargeAttempts,
			LastChargeAt:      inst.LastChargeAt,
			ProviderReference: inst.ProviderReference,
		})
	}
	return resp
}
