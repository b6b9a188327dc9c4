package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"accreditation-system/internal/status"
	"accreditation-system/models"
)

// PocketBaseStore persists participants in the embedded PocketBase
// collections. Mutations run inside RunInTransaction so the read-check-write
// sequences behave as compare-and-set.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error) {
	records, err := s.app.FindRecordsByFilter(
		"participants",
		"event = {:event}",
		"created",
		0,
		0,
		dbx.Params{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	participants := make([]models.Participant, 0, len(records))
	for _, rec := range records {
		participants = append(participants, recordToParticipant(rec))
	}
	return participants, nil
}

func (s *PocketBaseStore) CreateParticipant(ctx context.Context, eventID string, fields models.ParticipantFields) (*models.Participant, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	if _, err := s.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var created *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		if err := checkKeyFree(txApp, eventID, "national_id", fields.NationalID, ""); err != nil {
			return err
		}
		if err := checkEntryCodeFree(txApp, eventID, fields.EntryCode); err != nil {
			return err
		}

		collection, err := txApp.FindCollectionByNameOrId("participants")
		if err != nil {
			return err
		}

		rec := core.NewRecord(collection)
		rec.Set("event", eventID)
		rec.Set("name", fields.Name)
		rec.Set("last_name", fields.LastName)
		rec.Set("national_id", fields.NationalID)
		rec.Set("entry_code", fields.EntryCode)
		rec.Set("phone", fields.Phone)
		rec.Set("email", fields.Email)
		rec.Set("payment_method", fields.PaymentMethod)
		rec.Set("category", fields.Category)
		rec.Set("price_owed", priceToField(fields.PriceOwed))
		rec.Set("amount_paid", fields.AmountPaid.String())
		rec.Set("accredited", false)

		if err := txApp.Save(rec); err != nil {
			if isUniqueViolation(err) {
				return status.ErrConflict
			}
			return err
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := recordToParticipant(created)
	return &p, nil
}

func (s *PocketBaseStore) Accredit(ctx context.Context, participantID string) (*models.Participant, error) {
	var accredited *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("participants", participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return status.ErrNotFound
			}
			return err
		}

		if rec.GetBool("accredited") {
			return status.ErrAlreadyAccredited
		}

		rec.Set("accredited", true)
		if err := txApp.Save(rec); err != nil {
			return err
		}
		accredited = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := recordToParticipant(accredited)
	return &p, nil
}

func (s *PocketBaseStore) CompletePayment(ctx context.Context, participantID, method string) (*models.Participant, error) {
	if strings.TrimSpace(method) == "" {
		return nil, status.ErrValidation
	}

	var updated *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("participants", participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return status.ErrNotFound
			}
			return err
		}

		if rec.GetBool("accredited") {
			return status.ErrValidation
		}

		price := fieldToPrice(rec.GetString("price_owed"))
		if price == nil {
			return status.ErrValidation
		}
		paid := fieldToAmount(rec.GetString("amount_paid"))
		if models.DerivePaymentStatus(price, paid) == models.PaymentPaid {
			return status.ErrValidation
		}

		rec.Set("amount_paid", price.String())
		rec.Set("cancellation_payment_method", method)
		if err := txApp.Save(rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := recordToParticipant(updated)
	return &p, nil
}

func (s *PocketBaseStore) SetPrice(ctx context.Context, participantID string, price *decimal.Decimal) (*models.Participant, error) {
	if price != nil && price.IsNegative() {
		return nil, status.ErrValidation
	}

	var updated *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("participants", participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return status.ErrNotFound
			}
			return err
		}

		if rec.GetBool("accredited") {
			return status.ErrValidation
		}

		rec.Set("price_owed", priceToField(price))
		if err := txApp.Save(rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := recordToParticipant(updated)
	return &p, nil
}

func (s *PocketBaseStore) ReissueEntry(ctx context.Context, participantID, code string) (*models.Participant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, status.ErrValidation
	}

	var updated *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("participants", participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return status.ErrNotFound
			}
			return err
		}

		// A reissued code must differ from every live entry code, the
		// participant's own included. Only their previous reissued code
		// is replaceable.
		eventID := rec.GetString("event")
		if err := checkKeyFree(txApp, eventID, "entry_code", code, ""); err != nil {
			return err
		}
		if err := checkKeyFree(txApp, eventID, "reissued_entry_code", code, rec.Id); err != nil {
			return err
		}

		rec.Set("reissued_entry_code", code)
		if err := txApp.Save(rec); err != nil {
			if isUniqueViolation(err) {
				return status.ErrConflict
			}
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := recordToParticipant(updated)
	return &p, nil
}

func (s *PocketBaseStore) FindParticipant(ctx context.Context, participantID string) (*models.Participant, error) {
	rec, err := s.app.FindRecordById("participants", participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, err
	}

	p := recordToParticipant(rec)
	return &p, nil
}

func (s *PocketBaseStore) FindEvent(ctx context.Context, eventID string) (*models.Event, error) {
	rec, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, err
	}

	event := &models.Event{
		ID:          rec.Id,
		Name:        rec.GetString("name"),
		Date:        rec.GetDateTime("date").Time(),
		Location:    rec.GetString("location"),
		Description: rec.GetString("description"),
		Status:      rec.GetString("status"),
	}
	return event, nil
}

func validateFields(fields models.ParticipantFields) error {
	required := []string{
		fields.Name,
		fields.LastName,
		fields.NationalID,
		fields.EntryCode,
		fields.PaymentMethod,
		fields.Category,
	}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return status.ErrValidation
		}
	}
	if fields.AmountPaid.IsNegative() {
		return status.ErrValidation
	}
	if fields.PriceOwed != nil && fields.PriceOwed.IsNegative() {
		return status.ErrValidation
	}
	return nil
}

// checkKeyFree fails with ErrConflict when another participant of the event
// already holds value in field. excludeID skips the record being updated.
func checkKeyFree(app core.App, eventID, field, value, excludeID string) error {
	rec, err := app.FindFirstRecordByFilter(
		"participants",
		fmt.Sprintf("event = {:event} && %s = {:value}", field),
		dbx.Params{"event": eventID, "value": value},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if rec.Id == excludeID {
		return nil
	}
	return status.ErrConflict
}

// checkEntryCodeFree verifies code collides with neither an original entry
// code nor a previously reissued one within the event.
func checkEntryCodeFree(app core.App, eventID, code string) error {
	if err := checkKeyFree(app, eventID, "entry_code", code, ""); err != nil {
		return err
	}
	return checkKeyFree(app, eventID, "reissued_entry_code", code, "")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func priceToField(price *decimal.Decimal) string {
	if price == nil {
		return ""
	}
	return price.String()
}

// fieldToPrice reads the price_owed text field; empty means no price.
func fieldToPrice(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func fieldToAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParticipantFromRecord converts a raw participants record, used by the
// record hooks that broadcast changes.
func ParticipantFromRecord(rec *core.Record) models.Participant {
	return recordToParticipant(rec)
}

func recordToParticipant(rec *core.Record) models.Participant {
	return models.Participant{
		ID:                        rec.Id,
		EventID:                   rec.GetString("event"),
		Name:                      rec.GetString("name"),
		LastName:                  rec.GetString("last_name"),
		NationalID:                rec.GetString("national_id"),
		EntryCode:                 rec.GetString("entry_code"),
		ReissuedEntryCode:         rec.GetString("reissued_entry_code"),
		Phone:                     rec.GetString("phone"),
		Email:                     rec.GetString("email"),
		PaymentMethod:             rec.GetString("payment_method"),
		CancellationPaymentMethod: rec.GetString("cancellation_payment_method"),
		Category:                  rec.GetString("category"),
		PriceOwed:                 fieldToPrice(rec.GetString("price_owed")),
		AmountPaid:                fieldToAmount(rec.GetString("amount_paid")),
		Accredited:                rec.GetBool("accredited"),
		CreatedAt:                 rec.GetDateTime("created").Time(),
		UpdatedAt:                 rec.GetDateTime("updated").Time(),
	}
}
