// Package lifecycle owns the trip state machine. Every status change in
// the system funnels through Service.Transition, which validates the move
// against the transition table and applies its side effects on the store
// under a single mutex, so two trips can never claim the same driver.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Maaady/RidePulse/internal/bus"
	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/observability"
	"github.com/Maaady/RidePulse/internal/store"
)

var (
	ErrInvalidTransition = errors.New("invalid trip status transition")
	ErrInvalidStatus     = errors.New("invalid driver status")
	ErrDriverUnavailable = errors.New("driver not available")
	ErrDriverOnTrip      = errors.New("driver has an active trip")
)

// AllowedTransitions is the trip state flow as code. Completed and
// cancelled are terminal: they have no entry here.
var AllowedTransitions = map[models.TripStatus][]models.TripStatus{
	models.TripRequested:  {models.TripAssigned, models.TripCancelled},
	models.TripAssigned:   {models.TripPickedUp, models.TripCancelled},
	models.TripPickedUp:   {models.TripInProgress},
	models.TripInProgress: {models.TripCompleted},
}

func CanTransition(from, to models.TripStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Context carries per-transition inputs. DriverID and EstimatedArrival are
// required on entry to assigned; Reason is optional on cancellation.
type Context struct {
	DriverID         string
	EstimatedArrival time.Time
	Reason           string
}

type Service struct {
	mu     sync.Mutex
	store  store.Store
	bus    *bus.Bus
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, b *bus.Bus, logger *slog.Logger) *Service {
	return &Service{store: st, bus: b, logger: logger, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Transition moves a trip to target, applying side effects and publishing
// a trip_status event on success.
func (s *Service) Transition(tripID string, target models.TripStatus, tc Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.store.Trip(tripID)
	if err != nil {
		return fmt.Errorf("trip %s: %w", tripID, err)
	}
	if !CanTransition(t.Status, target) {
		return fmt.Errorf("%s -> %s: %w", t.Status, target, ErrInvalidTransition)
	}

	ev := models.TripStatusEvent{TripID: t.ID, Status: target}

	switch target {
	case models.TripAssigned:
		d, err := s.store.Driver(tc.DriverID)
		if err != nil {
			return fmt.Errorf("driver %s: %w", tc.DriverID, err)
		}
		if d.Status != models.DriverAvailable {
			return fmt.Errorf("driver %s: %w", d.ID, ErrDriverUnavailable)
		}
		eta := tc.EstimatedArrival
		t.DriverID = d.ID
		t.EstimatedArrival = &eta
		d.Status = models.DriverBusy
		if err := s.store.UpsertDriver(d); err != nil {
			return err
		}
		ev.DriverID = d.ID
		ev.EstimatedArrival = &eta

	case models.TripCompleted:
		d, err := s.store.Driver(t.DriverID)
		if err != nil {
			return fmt.Errorf("driver %s: %w", t.DriverID, err)
		}
		now := s.now()
		t.ActualArrival = &now
		t.DurationMin = int(math.Round(now.Sub(t.CreatedAt).Minutes()))
		d.TotalTrips++
		d.Status = models.DriverAvailable
		if err := s.store.UpsertDriver(d); err != nil {
			return err
		}
		ev.DriverID = d.ID
		ev.Fare = t.Fare
		ev.DurationMin = t.DurationMin

	case models.TripCancelled:
		t.CancelReason = tc.Reason
		ev.CancelReason = tc.Reason
		if t.DriverID != "" {
			d, err := s.store.Driver(t.DriverID)
			if err != nil {
				return fmt.Errorf("driver %s: %w", t.DriverID, err)
			}
			d.Status = models.DriverAvailable
			if err := s.store.UpsertDriver(d); err != nil {
				return err
			}
			ev.DriverID = d.ID
		}
	}

	t.Status = target
	if err := s.store.UpsertTrip(t); err != nil {
		return err
	}

	observability.TransitionsTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("trip transition",
		"trip_id", t.ID, "status", string(target), "driver_id", t.DriverID)
	s.bus.Publish(models.TopicTripStatus, ev)
	return nil
}

// SetDriverStatus applies a client-originated driver status change under
// the same mutex as trip transitions, so it cannot race an assignment.
// A driver with an active trip stays busy until that trip resolves.
// Clients may only toggle available and offline; busy is set and cleared
// by the assignment and completion side effects exclusively.
func (s *Service) SetDriverStatus(driverID string, status models.DriverStatus) error {
	switch status {
	case models.DriverAvailable, models.DriverOffline:
	case models.DriverBusy:
		return fmt.Errorf("driver %s: busy: %w", driverID, ErrInvalidStatus)
	default:
		return fmt.Errorf("driver %s: %q: %w", driverID, status, ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.store.Driver(driverID)
	if err != nil {
		return fmt.Errorf("driver %s: %w", driverID, err)
	}
	if d.Status == status {
		return nil
	}
	if active, err := s.hasActiveTrip(driverID); err != nil {
		return err
	} else if active {
		return fmt.Errorf("driver %s: %w", driverID, ErrDriverOnTrip)
	}
	d.Status = status
	return s.store.UpsertDriver(d)
}

func (s *Service) hasActiveTrip(driverID string) (bool, error) {
	trips, err := s.store.ListTrips(store.TripFilter{DriverID: driverID})
	if err != nil {
		return false, err
	}
	for _, t := range trips {
		if !t.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}
