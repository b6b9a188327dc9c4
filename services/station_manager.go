package services

import (
	"context"
	"sync"

	"accreditation-system/internal/store"
)

// StationManager tracks the live stations by id, creating one lazily on its
// first join. Each station gets its own feed so leaving a room never tears
// down another station's subscription.
type StationManager struct {
	store   store.ParticipantStore
	cfg     SessionConfig
	newFeed func() RoomFeed

	mu       sync.Mutex
	stations map[string]*Station
}

func NewStationManager(participantStore store.ParticipantStore, cfg SessionConfig, newFeed func() RoomFeed) *StationManager {
	return &StationManager{
		store:    participantStore,
		cfg:      cfg,
		newFeed:  newFeed,
		stations: make(map[string]*Station),
	}
}

func (m *StationManager) Join(ctx context.Context, stationID, eventID string) (*Station, error) {
	m.mu.Lock()
	station, ok := m.stations[stationID]
	if !ok {
		station = NewStation(stationID, m.store, m.newFeed(), m.cfg)
		m.stations[stationID] = station
	}
	m.mu.Unlock()

	if err := station.Join(ctx, eventID); err != nil {
		return nil, err
	}
	return station, nil
}

func (m *StationManager) Station(stationID string) (*Station, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	station, ok := m.stations[stationID]
	return station, ok
}

func (m *StationManager) Leave(stationID string) bool {
	m.mu.Lock()
	station, ok := m.stations[stationID]
	delete(m.stations, stationID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	station.Close()
	return true
}

// CloseAll tears down every station, used on shutdown.
func (m *StationManager) CloseAll() {
	m.mu.Lock()
	stations := make([]*Station, 0, len(m.stations))
	for _, st := range m.stations {
		stations = append(stations, st)
	}
	m.stations = make(map[string]*Station)
	m.mu.Unlock()

	for _, st := range stations {
		st.Close()
	}
}
