package store

import (
	"sync"

	"github.com/Maaady/RidePulse/internal/models"
)

// MemoryStore is the default in-process Store. A single RWMutex serializes
// writers so a read never observes a half-updated record.
type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
	riders  map[string]models.Rider
	trips   map[string]models.Trip
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drivers: make(map[string]models.Driver),
		riders:  make(map[string]models.Rider),
		trips:   make(map[string]models.Trip),
	}
}

func (m *MemoryStore) UpsertDriver(d models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}

func (m *MemoryStore) Driver(id string) (models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.Driver{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) ListDrivers(f DriverFilter) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		if matchDriver(d, f) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertRider(r models.Rider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[r.ID] = cloneRider(r)
	return nil
}

func (m *MemoryStore) Rider(id string) (models.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.riders[id]
	if !ok {
		return models.Rider{}, ErrNotFound
	}
	return cloneRider(r), nil
}

func (m *MemoryStore) UpsertTrip(t models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = cloneTrip(t)
	return nil
}

func (m *MemoryStore) Trip(id string) (models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return models.Trip{}, ErrNotFound
	}
	return cloneTrip(t), nil
}

func (m *MemoryStore) ListTrips(f TripFilter) ([]models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		if matchTrip(t, f) {
			out = append(out, cloneTrip(t))
		}
	}
	return out, nil
}

// Records carry pointer fields for optional values; clone them so callers
// never share memory with the store.
func cloneRider(r models.Rider) models.Rider {
	if r.Location != nil {
		loc := *r.Location
		r.Location = &loc
	}
	return r
}

func cloneTrip(t models.Trip) models.Trip {
	if t.EstimatedArrival != nil {
		ts := *t.EstimatedArrival
		t.EstimatedArrival = &ts
	}
	if t.ActualArrival != nil {
		ts := *t.ActualArrival
		t.ActualArrival = &ts
	}
	return t
}
