// Package operator runs the read-only console server: prometheus metrics
// plus per-event accreditation reports, kept off the main API port.
package operator

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accreditation-system/internal/status"
	"accreditation-system/internal/store"
	"accreditation-system/models"
	"accreditation-system/security"
)

type Server struct {
	store  store.ParticipantStore
	echo   *echo.Echo
	server *http.Server
}

func NewServer(participantStore store.ParticipantStore, limiter *security.RateLimiter, port string) *Server {
	e := echo.New()
	e.Use(middleware.Recover())

	s := &Server{
		store: participantStore,
		echo:  e,
		server: &http.Server{
			Addr:    ":" + port,
			Handler: e,
		},
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	report := e.Group("/report", limiter.ReportRateLimit())
	report.GET("/:eventId", s.eventReport)

	return s
}

func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// eventReport summarizes one event: per-participant payment status plus the
// accreditation and collection tallies an operator watches during the event.
func (s *Server) eventReport(c echo.Context) error {
	eventID := c.PathParam("eventId")
	ctx := c.Request().Context()

	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "report unavailable"})
	}

	participants, err := s.store.ListParticipants(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "report unavailable"})
	}

	accredited := 0
	byPayment := map[models.PaymentStatus]int{}
	rows := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		if p.Accredited {
			accredited++
		}
		ps := p.PaymentStatus()
		byPayment[ps]++
		rows = append(rows, map[string]any{
			"id":             p.ID,
			"name":           p.Name,
			"last_name":      p.LastName,
			"national_id":    p.NationalID,
			"entry_code":     p.EntryCode,
			"reissued_code":  p.ReissuedEntryCode,
			"category":       p.Category,
			"payment_status": ps,
			"accredited":     p.Accredited,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"event": map[string]any{
			"id":   event.ID,
			"name": event.Name,
			"date": event.Date,
		},
		"total":            len(participants),
		"accredited":       accredited,
		"payment_statuses": byPayment,
		"participants":     rows,
	})
}
