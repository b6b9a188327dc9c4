package models

import (
	"time"
)

// ImportSummary tallies one bulk import. Failed counts remote submission
// errors, Skipped counts rows dropped by local validation; the audit report
// keeps them distinct while Errors() folds them together.
type ImportSummary struct {
	JobID     string    `json:"job_id"`
	EventID   string    `json:"event_id"`
	Total     int       `json:"total"`
	Submitted int       `json:"submitted"`
	Success   int       `json:"success"`
	Conflict  int       `json:"conflict"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
}

func (s *ImportSummary) Errors() int {
	return s.Failed + s.Skipped
}

type ImportProgress struct {
	JobID     string `json:"job_id"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Success   int    `json:"success"`
	Conflict  int    `json:"conflict"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Done      bool   `json:"done"`
}
