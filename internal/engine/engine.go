// Package engine is the composition root of the dispatch system and its
// library-level boundary: trip requests, status updates, driver telemetry,
// and analytics all enter here. Construct one Engine per process; there is
// no global instance.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Maaady/RidePulse/internal/bus"
	"github.com/Maaady/RidePulse/internal/geo"
	"github.com/Maaady/RidePulse/internal/lifecycle"
	"github.com/Maaady/RidePulse/internal/matcher"
	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/observability"
	"github.com/Maaady/RidePulse/internal/store"
)

type Options struct {
	Store             store.Store
	Index             matcher.DriverIndex
	Bus               *bus.Bus
	Logger            *slog.Logger
	Fare              geo.FarePolicy
	Matcher           matcher.Config
	Source            bus.LocationSource
	GeneratorInterval time.Duration
}

type Engine struct {
	store     store.Store
	index     matcher.DriverIndex
	bus       *bus.Bus
	lifecycle *lifecycle.Service
	matcher   *matcher.Service
	generator *bus.Generator
	logger    *slog.Logger
	fare      geo.FarePolicy
	now       func() time.Time
}

func New(opts Options) *Engine {
	if opts.Index == nil {
		opts.Index = matcher.NewMemoryIndex(opts.Store)
	}
	if opts.Fare == (geo.FarePolicy{}) {
		opts.Fare = geo.DefaultFarePolicy()
	}
	e := &Engine{
		store:  opts.Store,
		index:  opts.Index,
		bus:    opts.Bus,
		logger: opts.Logger,
		fare:   opts.Fare,
		now:    time.Now,
	}
	e.lifecycle = lifecycle.NewService(opts.Store, opts.Bus, opts.Logger)
	e.matcher = matcher.NewService(opts.Store, opts.Index, e.lifecycle, opts.Logger, opts.Matcher)
	if opts.Source != nil && opts.GeneratorInterval > 0 {
		e.generator = bus.NewGenerator(opts.Store, opts.Source, e.UpdateDriverLocation, opts.GeneratorInterval, opts.Logger)
	}
	return e
}

// Start launches the matcher loop and, when configured, the simulated
// location generator. Both stop when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.matcher.Run(ctx)
	if e.generator != nil {
		go e.generator.Run(ctx)
	}
}

// Shutdown silences the bus; subsequent publishes become no-ops.
func (e *Engine) Shutdown() { e.bus.Shutdown() }

// Bus exposes the realtime bus for subscribers (views, exporters).
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Lifecycle exposes the trip state machine, mainly for tests.
func (e *Engine) Lifecycle() *lifecycle.Service { return e.lifecycle }

// Matcher exposes the dispatch matcher, mainly for tests.
func (e *Engine) Matcher() *matcher.Service { return e.matcher }

// RequestTrip creates a trip in requested state, fixes its distance and
// fare from the endpoint coordinates, and queues it for dispatch.
func (e *Engine) RequestTrip(riderID string, pickup, destination models.GeoPoint) (models.Trip, error) {
	if _, err := e.store.Rider(riderID); err != nil {
		return models.Trip{}, fmt.Errorf("rider %s: %w", riderID, err)
	}
	if pickup.Address == "" {
		pickup.Address = fmt.Sprintf("%.4f, %.4f", pickup.Latitude, pickup.Longitude)
	}
	if destination.Address == "" {
		destination.Address = fmt.Sprintf("%.4f, %.4f", destination.Latitude, destination.Longitude)
	}

	distance := geo.DistanceKm(pickup.Latitude, pickup.Longitude, destination.Latitude, destination.Longitude)
	t := models.Trip{
		ID:          newID("trip"),
		RiderID:     riderID,
		Pickup:      pickup,
		Destination: destination,
		Status:      models.TripRequested,
		CreatedAt:   e.now(),
		DistanceKm:  distance,
		Fare:        e.fare.Fare(distance),
	}
	if err := e.store.UpsertTrip(t); err != nil {
		return models.Trip{}, err
	}
	e.logger.Info("trip requested", "trip_id", t.ID, "rider_id", riderID, "distance_km", distance, "fare", t.Fare)
	e.matcher.Enqueue(t.ID)
	return t, nil
}

// UpdateTripStatus applies an externally requested transition (pickup,
// start, complete, cancel). Assignment is reserved for the matcher.
func (e *Engine) UpdateTripStatus(tripID string, status models.TripStatus) error {
	if err := e.lifecycle.Transition(tripID, status, lifecycle.Context{}); err != nil {
		return err
	}
	if status.Terminal() {
		e.syncDriverIndex(tripID)
		// a driver may just have been freed
		e.matcher.Wake()
	}
	return nil
}

// CancelTrip cancels with an explicit reason. Policy: only requested and
// assigned trips may be cancelled, which the transition table enforces.
func (e *Engine) CancelTrip(tripID, reason string) error {
	if err := e.lifecycle.Transition(tripID, models.TripCancelled, lifecycle.Context{Reason: reason}); err != nil {
		return err
	}
	e.syncDriverIndex(tripID)
	e.matcher.Wake()
	return nil
}

// UpdateDriverStatus applies a client-originated status change (online,
// offline). Drivers bound to an active trip cannot change status.
func (e *Engine) UpdateDriverStatus(driverID string, status models.DriverStatus) error {
	if err := e.lifecycle.SetDriverStatus(driverID, status); err != nil {
		return err
	}
	d, err := e.store.Driver(driverID)
	if err == nil {
		if err := e.index.Upsert(d); err != nil {
			e.logger.Warn("driver index upsert failed", "driver_id", driverID, "error", err)
		}
	}
	e.refreshOnlineGauge()
	if status == models.DriverAvailable {
		e.matcher.Wake()
	}
	return nil
}

// UpdateDriverLocation records a GPS fix and publishes it on the
// location_update topic. Both the simulated generator and real clients
// enter through here.
func (e *Engine) UpdateDriverLocation(driverID string, loc models.Location) error {
	d, err := e.store.Driver(driverID)
	if err != nil {
		return fmt.Errorf("driver %s: %w", driverID, err)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = e.now()
	}
	d.Location = loc
	if err := e.store.UpsertDriver(d); err != nil {
		return err
	}
	if err := e.index.Upsert(d); err != nil {
		e.logger.Warn("driver index upsert failed", "driver_id", driverID, "error", err)
	}
	e.bus.Publish(models.TopicLocationUpdate, models.LocationUpdate{
		DriverID: driverID,
		Location: loc,
		Status:   d.Status,
	})
	return nil
}

// UpdateRiderLocation records a rider's client-originated position.
func (e *Engine) UpdateRiderLocation(riderID string, loc models.Location) error {
	r, err := e.store.Rider(riderID)
	if err != nil {
		return fmt.Errorf("rider %s: %w", riderID, err)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = e.now()
	}
	r.Location = &loc
	return e.store.UpsertRider(r)
}

// Read-only queries for external views.

func (e *Engine) Driver(id string) (models.Driver, error) { return e.store.Driver(id) }
func (e *Engine) Rider(id string) (models.Rider, error)   { return e.store.Rider(id) }
func (e *Engine) Trip(id string) (models.Trip, error)     { return e.store.Trip(id) }

func (e *Engine) Drivers() ([]models.Driver, error) {
	return e.store.ListDrivers(store.DriverFilter{})
}

func (e *Engine) Trips(f store.TripFilter) ([]models.Trip, error) {
	return e.store.ListTrips(f)
}

// syncDriverIndex pushes a trip's driver into the index after the driver's
// status changed as a transition side effect.
func (e *Engine) syncDriverIndex(tripID string) {
	t, err := e.store.Trip(tripID)
	if err != nil || t.DriverID == "" {
		return
	}
	d, err := e.store.Driver(t.DriverID)
	if err != nil {
		return
	}
	if err := e.index.Upsert(d); err != nil {
		e.logger.Warn("driver index upsert failed", "driver_id", d.ID, "error", err)
	}
}

func (e *Engine) refreshOnlineGauge() {
	drivers, err := e.store.ListDrivers(store.DriverFilter{})
	if err != nil {
		return
	}
	online := 0
	for _, d := range drivers {
		if d.Status != models.DriverOffline {
			online++
		}
	}
	observability.DriversOnline.Set(float64(online))
}

func newID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}
