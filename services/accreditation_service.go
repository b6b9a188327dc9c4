package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"accreditation-system/internal/status"
	"accreditation-system/internal/store"
	"accreditation-system/models"
	"accreditation-system/monitoring"
)

// SearchState enumerates the per-station search/confirm workflow.
type SearchState string

const (
	StateIdle              SearchState = "idle"
	StateSearching         SearchState = "searching"
	StateFound             SearchState = "found"
	StateAlreadyAccredited SearchState = "alreadyAccredited"
	StateSuccessAccredited SearchState = "successAccredited"
	StateNotFound          SearchState = "notFound"
	StateError             SearchState = "error"
)

type NotificationType string

const (
	// NotifyRemoteAccreditation: another station credited the participant the
	// operator was looking at.
	NotifyRemoteAccreditation NotificationType = "remoteAccreditation"
	// NotifyOutstandingBalance: the found participant still owes money.
	// Accreditation is allowed regardless, the operator is warned.
	NotifyOutstandingBalance NotificationType = "outstandingBalance"
)

type Notification struct {
	Type        NotificationType   `json:"type"`
	Participant models.Participant `json:"participant"`
	Message     string             `json:"message"`
}

type SessionConfig struct {
	SuccessResetDelay time.Duration
	ResultResetDelay  time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SuccessResetDelay: 2 * time.Second,
		ResultResetDelay:  3 * time.Second,
	}
}

// Session is one station's accreditation workflow: search the local cache,
// confirm against the store. Quasi-terminal results auto-reset to idle on a
// single timer keyed to state entry; the error state waits for the operator.
type Session struct {
	cfg    SessionConfig
	store  store.ParticipantStore
	cache  *EventCache
	notify func(Notification)

	mu       sync.Mutex
	state    SearchState
	current  *models.Participant
	lastErr  error
	entrySeq uint64
	timer    *time.Timer
}

func NewSession(participantStore store.ParticipantStore, cache *EventCache, cfg SessionConfig, notify func(Notification)) *Session {
	if notify == nil {
		notify = func(Notification) {}
	}
	return &Session{
		cfg:    cfg,
		store:  participantStore,
		cache:  cache,
		notify: notify,
		state:  StateIdle,
	}
}

func (s *Session) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Current() *models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Submit starts a new search. An empty query is a no-op, as is submitting
// while a result is pending confirmation; a search from a quasi-terminal
// state counts as the operator acting before the timer.
func (s *Session) Submit(ctx context.Context, query string) SearchState {
	if strings.TrimSpace(query) == "" {
		return s.State()
	}

	s.mu.Lock()
	if s.state == StateFound || s.state == StateSearching || s.state == StateError {
		state := s.state
		s.mu.Unlock()
		return state
	}
	s.current = nil
	s.lastErr = nil
	s.transition(StateSearching)
	s.mu.Unlock()

	p, ok := s.cache.Search(query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSearching {
		// superseded by a reset or room change while resolving
		return s.state
	}

	switch {
	case !ok:
		s.transition(StateNotFound)
	case p.Accredited:
		s.current = &p
		s.transition(StateAlreadyAccredited)
	default:
		s.current = &p
		s.transition(StateFound)
		if p.HasOutstandingBalance() {
			s.notify(Notification{
				Type:        NotifyOutstandingBalance,
				Participant: p,
				Message:     "participant has an outstanding balance",
			})
		}
	}
	return s.state
}

// Confirm accredits the found participant. A concurrent accreditation by
// another station surfaces as alreadyAccredited, not as a failure; any other
// store error preserves the participant so the operator can retry.
func (s *Session) Confirm(ctx context.Context) (SearchState, error) {
	s.mu.Lock()
	if s.state != StateFound || s.current == nil {
		state := s.state
		s.mu.Unlock()
		return state, nil
	}
	pending := *s.current
	s.mu.Unlock()

	updated, err := s.store.Accredit(ctx, pending.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Discard the response if the operator moved on while it was in flight.
	if s.current == nil || s.current.ID != pending.ID {
		return s.state, nil
	}

	switch {
	case err == nil:
		s.current = updated
		s.cache.Apply(models.SyncMessage{
			Type:        models.SyncParticipantUpdated,
			EventID:     updated.EventID,
			Participant: *updated,
		})
		s.transition(StateSuccessAccredited)
		monitoring.TrackAccreditation(pending.EventID, "success")
	case errors.Is(err, status.ErrAlreadyAccredited):
		s.transition(StateAlreadyAccredited)
		monitoring.TrackAccreditation(pending.EventID, "alreadyAccredited")
	case errors.Is(err, status.ErrNotFound):
		s.current = nil
		s.transition(StateNotFound)
		monitoring.TrackAccreditation(pending.EventID, "notFound")
	default:
		s.lastErr = err
		s.transition(StateError)
		monitoring.TrackAccreditation(pending.EventID, "error")
		return s.state, err
	}
	return s.state, nil
}

// Retry returns from error to found so Confirm can be attempted again.
func (s *Session) Retry() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateError && s.current != nil {
		s.lastErr = nil
		s.transition(StateFound)
	}
	return s.state
}

// Reset returns to idle from any state, manual or timer driven.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// HandleRemoteUpdate reconciles a broadcast against the in-flight local
// workflow: when the pending participant arrives already accredited, some
// other station credited them first.
func (s *Session) HandleRemoteUpdate(p models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFound || s.current == nil || s.current.ID != p.ID || !p.Accredited {
		return
	}

	s.current = &p
	s.transition(StateAlreadyAccredited)
	s.notify(Notification{
		Type:        NotifyRemoteAccreditation,
		Participant: p,
		Message:     "participant was accredited at another station",
	})
}

// Close stops the pending auto-reset timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entrySeq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) resetLocked() {
	s.current = nil
	s.lastErr = nil
	s.transition(StateIdle)
}

// transition is the single place states change. The auto-reset timer is
// keyed to the entry sequence so a stale timer never clobbers a newer state.
func (s *Session) transition(to SearchState) {
	s.state = to
	s.entrySeq++

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	var delay time.Duration
	switch to {
	case StateSuccessAccredited:
		delay = s.cfg.SuccessResetDelay
	case StateNotFound, StateAlreadyAccredited:
		delay = s.cfg.ResultResetDelay
	}
	if delay <= 0 {
		return
	}

	seq := s.entrySeq
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.entrySeq == seq {
			s.resetLocked()
		}
	})
}
