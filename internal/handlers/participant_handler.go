package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"accreditation-system/internal/status"
	"accreditation-system/internal/store"
	"accreditation-system/models"
	"accreditation-system/monitoring"
)

type ParticipantHandler struct {
	store store.ParticipantStore
}

func NewParticipantHandler(participantStore store.ParticipantStore) *ParticipantHandler {
	return &ParticipantHandler{store: participantStore}
}

// participantView decorates a participant with its derived payment status so
// clients never re-implement the derivation.
type participantView struct {
	models.Participant
	PaymentStatus models.PaymentStatus `json:"payment_status"`
}

func viewOf(p models.Participant) participantView {
	return participantView{Participant: p, PaymentStatus: p.PaymentStatus()}
}

// ListParticipants - GET /api/v1/events/{eventId}/participants
func (h *ParticipantHandler) ListParticipants(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	if _, err := h.store.FindEvent(ctx, eventID); err != nil {
		return mapStoreError(err, "Event not found")
	}

	participants, err := h.store.ListParticipants(ctx, eventID)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to list participants", err)
	}

	views := make([]participantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, viewOf(p))
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":     eventID,
		"total":        len(views),
		"participants": views,
	})
}

// CreateParticipant - POST /api/v1/events/{eventId}/participants
func (h *ParticipantHandler) CreateParticipant(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	var req struct {
		Name          string `json:"name"`
		LastName      string `json:"last_name"`
		NationalID    string `json:"national_id"`
		EntryCode     string `json:"entry_code"`
		Phone         string `json:"phone"`
		Email         string `json:"email"`
		PaymentMethod string `json:"payment_method"`
		Category      string `json:"category"`
		PriceOwed     string `json:"price_owed"`
		AmountPaid    string `json:"amount_paid"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	fields := models.ParticipantFields{
		Name:          req.Name,
		LastName:      req.LastName,
		NationalID:    req.NationalID,
		EntryCode:     req.EntryCode,
		Phone:         req.Phone,
		Email:         req.Email,
		PaymentMethod: req.PaymentMethod,
		Category:      req.Category,
	}

	if req.PriceOwed != "" {
		price, err := decimal.NewFromString(req.PriceOwed)
		if err != nil {
			return apis.NewBadRequestError("Invalid price_owed", err)
		}
		fields.PriceOwed = &price
	}
	if req.AmountPaid != "" {
		paid, err := decimal.NewFromString(req.AmountPaid)
		if err != nil {
			return apis.NewBadRequestError("Invalid amount_paid", err)
		}
		fields.AmountPaid = paid
	}

	p, err := h.store.CreateParticipant(e.Request.Context(), eventID, fields)
	if err != nil {
		return mapStoreError(err, "Participant not created")
	}

	return e.JSON(http.StatusCreated, viewOf(*p))
}

// Accredit - POST /api/v1/participants/{participantId}/accredit
//
// A direct accreditation outside the station workflow, used by the
// back-office list view. A repeat call is reported, not rejected.
func (h *ParticipantHandler) Accredit(e *core.RequestEvent) error {
	participantID := e.Request.PathValue("participantId")
	ctx := e.Request.Context()

	p, err := h.store.Accredit(ctx, participantID)
	if err != nil {
		if errors.Is(err, status.ErrAlreadyAccredited) {
			current, ferr := h.store.FindParticipant(ctx, participantID)
			if ferr != nil {
				return mapStoreError(ferr, "Participant not found")
			}
			monitoring.TrackAccreditation(current.EventID, "alreadyAccredited")
			return e.JSON(http.StatusOK, map[string]any{
				"already_accredited": true,
				"participant":        viewOf(*current),
			})
		}
		return mapStoreError(err, "Participant not found")
	}

	monitoring.TrackAccreditation(p.EventID, "success")
	return e.JSON(http.StatusOK, map[string]any{
		"already_accredited": false,
		"participant":        viewOf(*p),
	})
}

// GetParticipant - GET /api/v1/participants/{participantId}
func (h *ParticipantHandler) GetParticipant(e *core.RequestEvent) error {
	p, err := h.store.FindParticipant(e.Request.Context(), e.Request.PathValue("participantId"))
	if err != nil {
		return mapStoreError(err, "Participant not found")
	}
	return e.JSON(http.StatusOK, viewOf(*p))
}

// mapStoreError translates the store's sentinel errors to API errors.
func mapStoreError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(notFoundMsg, nil)
	case errors.Is(err, status.ErrConflict):
		return apis.NewApiError(http.StatusConflict, "Duplicate national id or entry code", nil)
	case errors.Is(err, status.ErrValidation):
		return apis.NewBadRequestError("Invalid request", err)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Internal error", err)
	}
}
