package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"accreditation-system/internal/status"
	"accreditation-system/services"
)

type ImportHandler struct {
	importService *services.ImportService
}

func NewImportHandler(importService *services.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

// Import - POST /api/v1/events/{eventId}/participants/import
//
// Accepts a multipart upload with the spreadsheet under "file" and runs the
// whole batch before answering with the summary.
func (h *ImportHandler) Import(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	file, _, err := e.Request.FormFile("file")
	if err != nil {
		return apis.NewBadRequestError("Missing file upload", err)
	}
	defer file.Close()

	table, err := services.ReadCSVTable(file)
	if err != nil {
		return apis.NewBadRequestError("Unreadable spreadsheet", err)
	}

	summary, err := h.importService.Run(e.Request.Context(), eventID, table, nil)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrParse):
			return apis.NewBadRequestError("No valid rows in spreadsheet", err)
		case errors.Is(err, status.ErrNotFound):
			return apis.NewNotFoundError("Event not found", nil)
		default:
			return apis.NewApiError(http.StatusInternalServerError, "Import failed", err)
		}
	}

	slog.Info("import finished",
		"event_id", eventID,
		"job_id", summary.JobID,
		"success", summary.Success,
		"conflict", summary.Conflict,
		"errors", summary.Errors(),
	)

	return e.JSON(http.StatusOK, map[string]any{
		"job_id":    summary.JobID,
		"event_id":  summary.EventID,
		"total":     summary.Total,
		"submitted": summary.Submitted,
		"success":   summary.Success,
		"conflict":  summary.Conflict,
		"errors":    summary.Errors(),
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	})
}

// Progress - GET /api/v1/imports/{jobId}
func (h *ImportHandler) Progress(e *core.RequestEvent) error {
	jobID := e.Request.PathValue("jobId")

	progress, err := h.importService.Progress(e.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return apis.NewNotFoundError("Import job not found", nil)
		}
		return apis.NewApiError(http.StatusInternalServerError, "Failed to read progress", err)
	}

	return e.JSON(http.StatusOK, progress)
}
