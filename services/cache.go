package services

import (
	"sort"
	"sync"

	"accreditation-system/models"
)

// EventCache is a station's local view of one event's participants. Only the
// owning station loop applies broadcasts; every write is a whole-record
// replace by id, never a partial patch. The store remains the only
// authority.
type EventCache struct {
	mu           sync.RWMutex
	eventID      string
	participants map[string]models.Participant
}

func NewEventCache(eventID string) *EventCache {
	return &EventCache{
		eventID:      eventID,
		participants: make(map[string]models.Participant),
	}
}

func (c *EventCache) EventID() string {
	return c.eventID
}

// Apply merges one broadcast: last write wins, records absent locally are
// inserted. Messages for other rooms are ignored.
func (c *EventCache) Apply(msg models.SyncMessage) {
	if msg.EventID != c.eventID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants[msg.Participant.ID] = msg.Participant
}

// ReplaceAll swaps the full cache content, used on join and on the
// compensating refetch after a reconnect.
func (c *EventCache) ReplaceAll(participants []models.Participant) {
	next := make(map[string]models.Participant, len(participants))
	for _, p := range participants {
		next[p.ID] = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants = next
}

func (c *EventCache) Get(id string) (models.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[id]
	return p, ok
}

func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.participants)
}

func (c *EventCache) List() []models.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Search resolves a lookup key in order: national id, then entry code, then
// reissued entry code. Matching is exact after case/whitespace
// normalization.
func (c *EventCache) Search(query string) (models.Participant, bool) {
	key := models.NormalizeKey(query)
	if key == "" {
		return models.Participant{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.participants {
		if models.NormalizeKey(p.NationalID) == key {
			return p, true
		}
	}
	for _, p := range c.participants {
		if models.NormalizeKey(p.EntryCode) == key {
			return p, true
		}
	}
	for _, p := range c.participants {
		if p.ReissuedEntryCode != "" && models.NormalizeKey(p.ReissuedEntryCode) == key {
			return p, true
		}
	}
	return models.Participant{}, false
}
