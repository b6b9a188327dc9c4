package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"accreditation-system/internal/store"
	"accreditation-system/models"
	"accreditation-system/monitoring"
)

// Station hosts one physical check-in desk: a room subscription, the local
// participant cache and the search/confirm session. It owns the cache; the
// feed loop is the only writer applying broadcasts.
type Station struct {
	id    string
	store store.ParticipantStore
	feed  RoomFeed
	cfg   SessionConfig

	mu            sync.Mutex
	eventID       string
	cache         *EventCache
	session       *Session
	cancel        context.CancelFunc
	generation    uint64
	degraded      bool
	notifications []Notification
}

type StationSnapshot struct {
	StationID     string              `json:"station_id"`
	EventID       string              `json:"event_id,omitempty"`
	State         SearchState         `json:"state"`
	Participant   *models.Participant `json:"participant,omitempty"`
	Error         string              `json:"error,omitempty"`
	Degraded      bool                `json:"degraded"`
	CachedRecords int                 `json:"cached_records"`
	Notifications []Notification      `json:"notifications,omitempty"`
}

func NewStation(id string, participantStore store.ParticipantStore, feed RoomFeed, cfg SessionConfig) *Station {
	return &Station{
		id:    id,
		store: participantStore,
		feed:  feed,
		cfg:   cfg,
	}
}

func (st *Station) ID() string {
	return st.id
}

// Join subscribes the station to the event's room and primes the cache with
// a full fetch. Joining while in another room leaves it first.
func (st *Station) Join(ctx context.Context, eventID string) error {
	if _, err := st.store.FindEvent(ctx, eventID); err != nil {
		return err
	}

	st.mu.Lock()
	if st.eventID == eventID && st.session != nil {
		st.mu.Unlock()
		return nil
	}
	prev := st.leaveLocked()

	st.generation++
	gen := st.generation
	cache := NewEventCache(eventID)
	session := NewSession(st.store, cache, st.cfg, st.pushNotification)
	runCtx, cancel := context.WithCancel(context.Background())

	st.eventID = eventID
	st.cache = cache
	st.session = session
	st.cancel = cancel
	st.degraded = false
	st.notifications = nil
	st.mu.Unlock()

	// The unsubscribe from the previous room completes before the new
	// subscription starts, so a late leave cannot tear the new one down.
	if prev != "" {
		st.feed.Leave(prev)
	}

	if err := st.feed.Join(eventID); err != nil {
		st.teardown()
		return fmt.Errorf("join room: %w", err)
	}

	if err := st.refetch(ctx, gen); err != nil {
		st.teardown()
		return err
	}

	go st.run(runCtx, gen)
	monitoring.StationJoined()
	return nil
}

// Leave unsubscribes and tears the session down.
func (st *Station) Leave() {
	st.teardown()
}

func (st *Station) teardown() {
	st.mu.Lock()
	eventID := st.leaveLocked()
	st.mu.Unlock()

	if eventID != "" {
		st.feed.Leave(eventID)
	}
}

// Close leaves the room and shuts the feed connection down.
func (st *Station) Close() {
	st.Leave()
	st.feed.Close()
}

func (st *Station) Session() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session
}

func (st *Station) Degraded() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.degraded
}

func (st *Station) Snapshot() StationSnapshot {
	st.mu.Lock()
	session := st.session
	snap := StationSnapshot{
		StationID:     st.id,
		EventID:       st.eventID,
		State:         StateIdle,
		Degraded:      st.degraded,
		Notifications: append([]Notification(nil), st.notifications...),
	}
	if st.cache != nil {
		snap.CachedRecords = st.cache.Len()
	}
	st.mu.Unlock()

	if session != nil {
		snap.State = session.State()
		snap.Participant = session.Current()
		if err := session.Err(); err != nil {
			snap.Error = err.Error()
		}
	}
	return snap
}

// leaveLocked tears the session down and reports which room to unsubscribe
// from; the feed call happens outside the lock.
func (st *Station) leaveLocked() string {
	if st.session == nil {
		return ""
	}

	eventID := st.eventID
	st.generation++
	st.cancel()
	st.session.Close()
	st.eventID = ""
	st.cache = nil
	st.session = nil
	st.cancel = nil

	monitoring.StationLeft()
	return eventID
}

func (st *Station) run(ctx context.Context, gen uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-st.feed.Messages():
			st.apply(gen, msg)
		case state := <-st.feed.Status():
			st.handleStatus(ctx, gen, state)
		}
	}
}

func (st *Station) apply(gen uint64, msg models.SyncMessage) {
	st.mu.Lock()
	if st.generation != gen || st.cache == nil || msg.EventID != st.eventID {
		st.mu.Unlock()
		return
	}
	cache := st.cache
	session := st.session
	st.mu.Unlock()

	cache.Apply(msg)
	if msg.Type == models.SyncParticipantUpdated {
		session.HandleRemoteUpdate(msg.Participant)
	}
}

func (st *Station) handleStatus(ctx context.Context, gen uint64, state ConnState) {
	switch state {
	case ConnDisconnected:
		st.mu.Lock()
		st.degraded = true
		st.mu.Unlock()
		slog.Warn("station degraded to non-real-time mode", "station", st.id)
	case ConnConnected, ConnReconnected:
		st.mu.Lock()
		st.degraded = false
		st.mu.Unlock()
		if state == ConnReconnected {
			// missed broadcasts are not replayed, compensate with a refetch
			go func() {
				if err := st.refetch(ctx, gen); err != nil {
					slog.Warn("post-reconnect refetch failed", "station", st.id, "error", err)
				}
			}()
		}
	}
}

// refetch replaces the cache with the authoritative list. The generation
// check discards responses that arrive after the station changed rooms.
func (st *Station) refetch(ctx context.Context, gen uint64) error {
	st.mu.Lock()
	eventID := st.eventID
	st.mu.Unlock()
	if eventID == "" {
		return nil
	}

	participants, err := st.store.ListParticipants(ctx, eventID)
	if err != nil {
		return fmt.Errorf("refetch participants: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generation != gen || st.cache == nil {
		return nil
	}
	st.cache.ReplaceAll(participants)
	return nil
}

func (st *Station) pushNotification(n Notification) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.notifications = append(st.notifications, n)
	if len(st.notifications) > 10 {
		st.notifications = st.notifications[len(st.notifications)-10:]
	}
}
