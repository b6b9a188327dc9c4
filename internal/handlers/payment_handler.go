package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"accreditation-system/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CompletePayment - POST /api/v1/participants/{participantId}/payment/complete
func (h *PaymentHandler) CompletePayment(e *core.RequestEvent) error {
	participantID := e.Request.PathValue("participantId")

	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	p, err := h.paymentService.CompletePayment(e.Request.Context(), participantID, req.PaymentMethod)
	if err != nil {
		return mapStoreError(err, "Participant not found")
	}
	return e.JSON(http.StatusOK, viewOf(*p))
}

// SetPrice - PUT /api/v1/participants/{participantId}/price
//
// An empty price clears the charge entirely.
func (h *PaymentHandler) SetPrice(e *core.RequestEvent) error {
	participantID := e.Request.PathValue("participantId")

	var req struct {
		PriceOwed string `json:"price_owed"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	var price *decimal.Decimal
	if req.PriceOwed != "" {
		d, err := decimal.NewFromString(req.PriceOwed)
		if err != nil {
			return apis.NewBadRequestError("Invalid price_owed", err)
		}
		price = &d
	}

	p, err := h.paymentService.SetPrice(e.Request.Context(), participantID, price)
	if err != nil {
		return mapStoreError(err, "Participant not found")
	}
	return e.JSON(http.StatusOK, viewOf(*p))
}

// ReissueEntry - POST /api/v1/participants/{participantId}/reissue
//
// With no code in the body one is derived from the original entry code.
func (h *PaymentHandler) ReissueEntry(e *core.RequestEvent) error {
	participantID := e.Request.PathValue("participantId")

	var req struct {
		EntryCode string `json:"entry_code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	p, err := h.paymentService.ReissueEntry(e.Request.Context(), participantID, req.EntryCode)
	if err != nil {
		return mapStoreError(err, "Participant not found")
	}
	return e.JSON(http.StatusOK, viewOf(*p))
}
