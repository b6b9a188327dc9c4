package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"accreditation-system/services"
)

// StationHandler exposes the per-desk accreditation workflow. The station id
// comes from the URL, so any client can resume its station after a reload.
type StationHandler struct {
	stations *services.StationManager
}

func NewStationHandler(stations *services.StationManager) *StationHandler {
	return &StationHandler{stations: stations}
}

// Join - POST /api/v1/stations/{stationId}/join
func (h *StationHandler) Join(e *core.RequestEvent) error {
	stationID := e.Request.PathValue("stationId")

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}

	station, err := h.stations.Join(e.Request.Context(), stationID, req.EventID)
	if err != nil {
		return mapStoreError(err, "Event not found")
	}
	return e.JSON(http.StatusOK, station.Snapshot())
}

// Search - POST /api/v1/stations/{stationId}/search
func (h *StationHandler) Search(e *core.RequestEvent) error {
	station, session, err := h.session(e)
	if err != nil {
		return err
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session.Submit(e.Request.Context(), req.Query)
	return e.JSON(http.StatusOK, station.Snapshot())
}

// Confirm - POST /api/v1/stations/{stationId}/confirm
func (h *StationHandler) Confirm(e *core.RequestEvent) error {
	station, session, err := h.session(e)
	if err != nil {
		return err
	}

	// The session keeps the error in its own state, the snapshot carries it.
	session.Confirm(e.Request.Context())
	return e.JSON(http.StatusOK, station.Snapshot())
}

// Retry - POST /api/v1/stations/{stationId}/retry
func (h *StationHandler) Retry(e *core.RequestEvent) error {
	station, session, err := h.session(e)
	if err != nil {
		return err
	}

	session.Retry()
	return e.JSON(http.StatusOK, station.Snapshot())
}

// Reset - POST /api/v1/stations/{stationId}/reset
func (h *StationHandler) Reset(e *core.RequestEvent) error {
	station, session, err := h.session(e)
	if err != nil {
		return err
	}

	session.Reset()
	return e.JSON(http.StatusOK, station.Snapshot())
}

// State - GET /api/v1/stations/{stationId}
func (h *StationHandler) State(e *core.RequestEvent) error {
	station, ok := h.stations.Station(e.Request.PathValue("stationId"))
	if !ok {
		return apis.NewNotFoundError("Station not found", nil)
	}
	return e.JSON(http.StatusOK, station.Snapshot())
}

// Leave - POST /api/v1/stations/{stationId}/leave
func (h *StationHandler) Leave(e *core.RequestEvent) error {
	if !h.stations.Leave(e.Request.PathValue("stationId")) {
		return apis.NewNotFoundError("Station not found", nil)
	}
	return e.JSON(http.StatusOK, map[string]any{"left": true})
}

func (h *StationHandler) session(e *core.RequestEvent) (*services.Station, *services.Session, error) {
	station, ok := h.stations.Station(e.Request.PathValue("stationId"))
	if !ok {
		return nil, nil, apis.NewNotFoundError("Station not found", nil)
	}
	session := station.Session()
	if session == nil {
		return nil, nil, apis.NewBadRequestError("Station has not joined an event", nil)
	}
	return station, session, nil
}
