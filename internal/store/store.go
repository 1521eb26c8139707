// Package store is the authoritative home of all mutable fleet state.
// Every other component reads and writes Driver, Rider, and Trip records
// exclusively through the Store interface.
package store

import (
	"errors"

	"github.com/Maaady/RidePulse/internal/models"
)

// ErrNotFound is returned for lookups against unknown identities.
var ErrNotFound = errors.New("record not found")

// DriverFilter narrows ListDrivers. Zero values mean "any".
type DriverFilter struct {
	Status models.DriverStatus
}

// TripFilter narrows ListTrips. Zero values mean "any".
type TripFilter struct {
	Status   models.TripStatus
	RiderID  string
	DriverID string
}

// Store defines persistence for the dispatch engine. Implementations must
// make each operation atomic with respect to concurrent callers and must
// hand out copies, never aliases into their own state.
type Store interface {
	UpsertDriver(d models.Driver) error
	Driver(id string) (models.Driver, error)
	ListDrivers(f DriverFilter) ([]models.Driver, error)

	UpsertRider(r models.Rider) error
	Rider(id string) (models.Rider, error)

	UpsertTrip(t models.Trip) error
	Trip(id string) (models.Trip, error)
	ListTrips(f TripFilter) ([]models.Trip, error)
}

func matchDriver(d models.Driver, f DriverFilter) bool {
	return f.Status == "" || d.Status == f.Status
}

func matchTrip(t models.Trip, f TripFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.RiderID != "" && t.RiderID != f.RiderID {
		return false
	}
	if f.DriverID != "" && t.DriverID != f.DriverID {
		return false
	}
	return true
}
