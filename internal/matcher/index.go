package matcher

import (
	"sort"

	"github.com/Maaady/RidePulse/internal/geo"
	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/store"
)

// Candidate is a driver considered for dispatch, with its great-circle
// distance from the pickup point.
type Candidate struct {
	DriverID   string
	DistanceKm float64
}

// DriverIndex enumerates available drivers near a point, closest first.
// The index is a hint: the lifecycle re-validates driver availability
// under its own lock before an assignment lands, so a slightly stale
// index costs a retry, never a double booking.
type DriverIndex interface {
	// Nearby returns up to limit candidates sorted by ascending distance,
	// ties broken by lowest driver ID. limit <= 0 means no cap.
	Nearby(lat, lon float64, limit int) ([]Candidate, error)
	// Upsert records a driver's current position and status.
	Upsert(d models.Driver) error
}

// MemoryIndex scans the entity store directly. It needs no maintenance
// beyond what the store already holds, and is the default.
type MemoryIndex struct {
	store store.Store
}

func NewMemoryIndex(s store.Store) *MemoryIndex {
	return &MemoryIndex{store: s}
}

func (m *MemoryIndex) Upsert(models.Driver) error { return nil }

func (m *MemoryIndex) Nearby(lat, lon float64, limit int) ([]Candidate, error) {
	drivers, err := m.store.ListDrivers(store.DriverFilter{Status: models.DriverAvailable})
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, Candidate{
			DriverID:   d.ID,
			DistanceKm: geo.DistanceKm(lat, lon, d.Location.Latitude, d.Location.Longitude),
		})
	}
	sortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortCandidates orders by ascending distance, ties by lowest driver ID.
func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].DistanceKm != cs[j].DistanceKm {
			return cs[i].DistanceKm < cs[j].DistanceKm
		}
		return cs[i].DriverID < cs[j].DriverID
	})
}
