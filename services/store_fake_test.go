package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"accreditation-system/internal/status"
	"accreditation-system/models"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// fakeStore is an in-memory ParticipantStore with the same error contracts
// as the real one, safe for concurrent use.
type fakeStore struct {
	mu           sync.Mutex
	events       map[string]models.Event
	participants map[string]models.Participant
	nextID       int

	// createErr, when set, fails the next CreateParticipant calls.
	createErr   error
	accreditErr error
}

func newFakeStore(eventIDs ...string) *fakeStore {
	s := &fakeStore{
		events:       make(map[string]models.Event),
		participants: make(map[string]models.Participant),
	}
	for _, id := range eventIDs {
		s.events[id] = models.Event{ID: id, Name: "event " + id, Status: "active"}
	}
	return s
}

func (s *fakeStore) add(p models.Participant) models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		s.nextID++
		p.ID = fmt.Sprintf("p%03d", s.nextID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.participants[p.ID] = p
	return p
}

func (s *fakeStore) ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for _, p := range s.participants {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateParticipant(ctx context.Context, eventID string, fields models.ParticipantFields) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, ok := s.events[eventID]; !ok {
		return nil, status.ErrNotFound
	}
	for _, existing := range s.participants {
		if existing.EventID != eventID {
			continue
		}
		if existing.NationalID == fields.NationalID || existing.EntryCode == fields.EntryCode {
			return nil, status.ErrConflict
		}
	}

	s.nextID++
	p := models.Participant{
		ID:            fmt.Sprintf("p%03d", s.nextID),
		EventID:       eventID,
		Name:          fields.Name,
		LastName:      fields.LastName,
		NationalID:    fields.NationalID,
		EntryCode:     fields.EntryCode,
		Phone:         fields.Phone,
		Email:         fields.Email,
		PaymentMethod: fields.PaymentMethod,
		Category:      fields.Category,
		PriceOwed:     fields.PriceOwed,
		AmountPaid:    fields.AmountPaid,
		CreatedAt:     time.Now(),
	}
	s.participants[p.ID] = p
	return &p, nil
}

func (s *fakeStore) Accredit(ctx context.Context, participantID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accreditErr != nil {
		return nil, s.accreditErr
	}
	p, ok := s.participants[participantID]
	if !ok {
		return nil, status.ErrNotFound
	}
	if p.Accredited {
		return nil, status.ErrAlreadyAccredited
	}
	p.Accredited = true
	s.participants[participantID] = p
	return &p, nil
}

func (s *fakeStore) CompletePayment(ctx context.Context, participantID, method string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, status.ErrNotFound
	}
	if p.Accredited || p.PriceOwed == nil || p.PaymentStatus() == models.PaymentPaid {
		return nil, status.ErrValidation
	}
	p.AmountPaid = *p.PriceOwed
	p.CancellationPaymentMethod = method
	s.participants[participantID] = p
	return &p, nil
}

func (s *fakeStore) SetPrice(ctx context.Context, participantID string, price *decimal.Decimal) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, status.ErrNotFound
	}
	if p.Accredited {
		return nil, status.ErrValidation
	}
	p.PriceOwed = price
	s.participants[participantID] = p
	return &p, nil
}

func (s *fakeStore) ReissueEntry(ctx context.Context, participantID, code string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, status.ErrNotFound
	}
	for id, existing := range s.participants {
		if existing.EventID != p.EventID {
			continue
		}
		// The original entry code stays reserved even for its own holder;
		// only the holder's previous reissued code is replaceable.
		if existing.EntryCode == code {
			return nil, status.ErrConflict
		}
		if id != participantID && existing.ReissuedEntryCode == code {
			return nil, status.ErrConflict
		}
	}
	p.ReissuedEntryCode = code
	s.participants[participantID] = p
	return &p, nil
}

func (s *fakeStore) FindParticipant(ctx context.Context, participantID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return nil, status.ErrNotFound
	}
	return &p, nil
}

func (s *fakeStore) FindEvent(ctx context.Context, eventID string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, status.ErrNotFound
	}
	return &e, nil
}
