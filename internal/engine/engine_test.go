package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Maaady/RidePulse/internal/bus"
	"github.com/Maaady/RidePulse/internal/geo"
	"github.com/Maaady/RidePulse/internal/lifecycle"
	"github.com/Maaady/RidePulse/internal/matcher"
	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	b := bus.New(testLogger(), 0, 0)
	t.Cleanup(b.Shutdown)
	e := New(Options{
		Store:  st,
		Bus:    b,
		Logger: testLogger(),
		// immediate dispatch and fast retries keep the tests snappy
		Matcher: matcher.Config{RetryInterval: 5 * time.Millisecond},
	})
	return e, st
}

func seedRider(st store.Store, id string) {
	st.UpsertRider(models.Rider{ID: id, Name: "Rider " + id, Rating: 4.7})
}

func seedDriver(st store.Store, id string, lat, lon float64) {
	st.UpsertDriver(models.Driver{
		ID: id, Name: "Driver " + id, Status: models.DriverAvailable, Rating: 4.8,
		Location: models.Location{Latitude: lat, Longitude: lon, Timestamp: time.Now()},
	})
}

func TestRequestTripAssignsOnlyAvailableDriver(t *testing.T) {
	e, st := newTestEngine(t)
	seedRider(st, "rider_1")
	// ~2 km north of the pickup point
	seedDriver(st, "driver_1", 28.6319, 77.2090)

	trip, err := e.RequestTrip("rider_1",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.62, Longitude: 77.22})
	if err != nil {
		t.Fatal(err)
	}
	if trip.Status != models.TripRequested {
		t.Fatalf("fresh trip should be requested, got %s", trip.Status)
	}
	wantFare := geo.DefaultFarePolicy().Fare(trip.DistanceKm)
	if trip.Fare != wantFare {
		t.Fatalf("fare = %d, want %d", trip.Fare, wantFare)
	}

	e.Matcher().Sweep()

	got, _ := st.Trip(trip.ID)
	if got.Status != models.TripAssigned {
		t.Fatalf("expected assigned, got %s", got.Status)
	}
	if got.DriverID != "driver_1" {
		t.Fatalf("expected driver_1, got %q", got.DriverID)
	}
	if got.Fare != wantFare {
		t.Fatal("fare must not be recomputed on assignment")
	}
	d, _ := st.Driver("driver_1")
	if d.Status != models.DriverBusy {
		t.Fatalf("assigned driver should be busy, got %s", d.Status)
	}
}

func TestRequestTripNoDriversStaysRequested(t *testing.T) {
	e, st := newTestEngine(t)
	seedRider(st, "rider_1")

	trip, err := e.RequestTrip("rider_1",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.62, Longitude: 77.22})
	if err != nil {
		t.Fatal(err)
	}

	e.Matcher().Sweep()

	got, _ := st.Trip(trip.ID)
	if got.Status != models.TripRequested {
		t.Fatalf("expected requested, got %s", got.Status)
	}
	if got.DriverID != "" {
		t.Fatalf("driver must stay unset, got %q", got.DriverID)
	}
}

func TestRequestTripUnknownRider(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.RequestTrip("ghost", models.GeoPoint{}, models.GeoPoint{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestTripDefaultsAddresses(t *testing.T) {
	e, _ := newTestEngine(t)
	seedRider(e.store, "rider_1")
	trip, err := e.RequestTrip("rider_1",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.62, Longitude: 77.22, Address: "Connaught Place"})
	if err != nil {
		t.Fatal(err)
	}
	if trip.Pickup.Address != "28.6139, 77.2090" {
		t.Fatalf("pickup address not defaulted: %q", trip.Pickup.Address)
	}
	if trip.Destination.Address != "Connaught Place" {
		t.Fatalf("explicit address overwritten: %q", trip.Destination.Address)
	}
}

func TestFullTripLifecycle(t *testing.T) {
	e, st := newTestEngine(t)
	seedRider(st, "rider_1")
	seedDriver(st, "driver_1", 28.6319, 77.2090)

	trip, err := e.RequestTrip("rider_1",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.62, Longitude: 77.22})
	if err != nil {
		t.Fatal(err)
	}
	e.Matcher().Sweep()

	for _, status := range []models.TripStatus{models.TripPickedUp, models.TripInProgress, models.TripCompleted} {
		if err := e.UpdateTripStatus(trip.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	got, _ := st.Trip(trip.ID)
	if got.Status != models.TripCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ActualArrival == nil {
		t.Fatal("actual arrival not set")
	}
	d, _ := st.Driver("driver_1")
	if d.Status != models.DriverAvailable {
		t.Fatalf("driver not freed, got %s", d.Status)
	}
	if d.TotalTrips != 1 {
		t.Fatalf("expected trip count 1, got %d", d.TotalTrips)
	}

	a, err := e.Analytics()
	if err != nil {
		t.Fatal(err)
	}
	if a.TotalTrips != 1 || a.CompletedTrips != 1 {
		t.Fatalf("unexpected analytics %+v", a)
	}
	if a.CompletionRate != 1 {
		t.Fatalf("completion rate = %f, want 1", a.CompletionRate)
	}
	if a.TotalRevenue != got.Fare {
		t.Fatalf("revenue = %d, want %d", a.TotalRevenue, got.Fare)
	}
}

func TestCancelAfterPickupFails(t *testing.T) {
	e, st := newTestEngine(t)
	seedRider(st, "rider_1")
	seedDriver(st, "driver_1", 28.6319, 77.2090)

	trip, _ := e.RequestTrip("rider_1",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.62, Longitude: 77.22})
	e.Matcher().Sweep()
	if err := e.UpdateTripStatus(trip.ID, models.TripPickedUp); err != nil {
		t.Fatal(err)
	}

	err := e.CancelTrip(trip.ID, "rider_changed_mind")
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got, _ := st.Trip(trip.ID)
	if got.Status != models.TripPickedUp {
		t.Fatalf("status changed on rejected cancel: %s", got.Status)
	}
}

func TestCancelRequeuesFreedDriver(t *testing.T) {
	e, st := newTestEngine(t)
	seedRider(st, "rider_1")
	seedRider(st, "rider_2")
	seedDriver(st, "driver_1", 28.6319, 77.2090)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	first, _ := e.RequestTrip("rider_1",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.62, Longitude: 77.22})
	waitForStatus(t, st, first.ID, models.TripAssigned)

	// second trip has to wait for the only driver
	second, _ := e.RequestTrip("rider_2",
		models.GeoPoint{Latitude: 28.6139, Longitude: 77.2090},
		models.GeoPoint{Latitude: 28.60, Longitude: 77.20})
	time.Sleep(20 * time.Millisecond)
	if got, _ := st.Trip(second.ID); got.Status != models.TripRequested {
		t.Fatalf("second trip should be waiting, got %s", got.Status)
	}

	if err := e.CancelTrip(first.ID, "rider_changed_mind"); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, st, second.ID, models.TripAssigned)
}

func TestUpdateDriverLocationPublishes(t *testing.T) {
	e, st := newTestEngine(t)
	seedDriver(st, "driver_1", 28.6139, 77.2090)

	got := make(chan models.LocationUpdate, 1)
	e.Bus().Subscribe(models.TopicLocationUpdate, func(env bus.Envelope) {
		if u, ok := env.Payload.(models.LocationUpdate); ok {
			got <- u
		}
	})

	loc := models.Location{Latitude: 28.65, Longitude: 77.25, Heading: 90}
	if err := e.UpdateDriverLocation("driver_1", loc); err != nil {
		t.Fatal(err)
	}

	select {
	case u := <-got:
		if u.DriverID != "driver_1" || u.Location.Latitude != 28.65 {
			t.Fatalf("unexpected update %+v", u)
		}
		if u.Location.Timestamp.IsZero() {
			t.Fatal("timestamp not defaulted")
		}
	case <-time.After(time.Second):
		t.Fatal("location_update never published")
	}

	d, _ := st.Driver("driver_1")
	if d.Location.Latitude != 28.65 {
		t.Fatalf("store not updated: %+v", d.Location)
	}
}

func TestUpdateDriverLocationUnknownDriver(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.UpdateDriverLocation("ghost", models.Location{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyticsRecentTripsCappedAndSorted(t *testing.T) {
	e, st := newTestEngine(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		st.UpsertTrip(models.Trip{
			ID:        fmt.Sprintf("trip_%02d", i),
			RiderID:   "rider_1",
			Status:    models.TripRequested,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	a, err := e.Analytics()
	if err != nil {
		t.Fatal(err)
	}
	if len(a.RecentTrips) != 10 {
		t.Fatalf("expected 10 recent trips, got %d", len(a.RecentTrips))
	}
	if a.RecentTrips[0].ID != "trip_14" {
		t.Fatalf("expected newest first, got %s", a.RecentTrips[0].ID)
	}
	for i := 1; i < len(a.RecentTrips); i++ {
		if a.RecentTrips[i].CreatedAt.After(a.RecentTrips[i-1].CreatedAt) {
			t.Fatal("recent trips not sorted newest first")
		}
	}
}

func TestSeedDemoFleet(t *testing.T) {
	e, st := newTestEngine(t)
	if err := e.SeedDemoFleet(); err != nil {
		t.Fatal(err)
	}
	drivers, _ := st.ListDrivers(store.DriverFilter{})
	if len(drivers) != 8 {
		t.Fatalf("expected 8 seeded drivers, got %d", len(drivers))
	}
	for _, d := range drivers {
		if d.Status != models.DriverAvailable {
			t.Fatalf("seeded driver %s not available", d.ID)
		}
	}
	if _, err := st.Rider("rider_1"); err != nil {
		t.Fatalf("seeded rider missing: %v", err)
	}
}

func waitForStatus(t *testing.T, st store.Store, tripID string, want models.TripStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if trip, err := st.Trip(tripID); err == nil && trip.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	trip, _ := st.Trip(tripID)
	t.Fatalf("trip %s never reached %s, stuck at %s", tripID, want, trip.Status)
}
