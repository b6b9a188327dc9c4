// Package store defines the authoritative participant store consumed by the
// reconcilers. Implementations must provide atomic, idempotent
// compare-and-set semantics for Accredit; every other correctness guarantee
// in the system leans on that.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"accreditation-system/models"
)

type ParticipantStore interface {
	ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error)

	// CreateParticipant returns status.ErrConflict on a duplicate national id
	// or entry code within the event, status.ErrValidation on missing or
	// malformed fields and status.ErrNotFound for an unknown event.
	CreateParticipant(ctx context.Context, eventID string, fields models.ParticipantFields) (*models.Participant, error)

	// Accredit flips accredited false->true exactly once. A second call on
	// the same participant returns status.ErrAlreadyAccredited and changes
	// nothing.
	Accredit(ctx context.Context, participantID string) (*models.Participant, error)

	// CompletePayment settles the full outstanding balance in one payment and
	// records method as the cancellation payment method. Fails with
	// status.ErrValidation when the participant has no price, is already paid
	// or is accredited.
	CompletePayment(ctx context.Context, participantID, method string) (*models.Participant, error)

	// SetPrice updates the price owed only; a nil price clears it. Fails with
	// status.ErrValidation when the participant is accredited.
	SetPrice(ctx context.Context, participantID string, price *decimal.Decimal) (*models.Participant, error)

	// ReissueEntry assigns a replacement entry code, keeping the original for
	// audit. Fails with status.ErrConflict when the code collides with any
	// entry code or reissued code in the event.
	ReissueEntry(ctx context.Context, participantID, code string) (*models.Participant, error)

	// FindParticipant returns status.ErrNotFound for an unknown id.
	FindParticipant(ctx context.Context, participantID string) (*models.Participant, error)

	FindEvent(ctx context.Context, eventID string) (*models.Event, error)
}
