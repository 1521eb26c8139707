package store

import (
	"errors"
	"testing"
	"time"

	"github.com/Maaady/RidePulse/internal/models"
)

func TestMemoryStoreNotFound(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.Driver("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Rider("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Trip("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpsertAndGet(t *testing.T) {
	m := NewMemoryStore()
	d := models.Driver{ID: "d1", Name: "Test", Status: models.DriverAvailable, Rating: 4.5}
	if err := m.UpsertDriver(d); err != nil {
		t.Fatal(err)
	}
	got, err := m.Driver("d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Test" || got.Status != models.DriverAvailable {
		t.Fatalf("unexpected driver %+v", got)
	}

	d.Status = models.DriverBusy
	if err := m.UpsertDriver(d); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Driver("d1")
	if got.Status != models.DriverBusy {
		t.Fatalf("upsert did not replace, got %+v", got)
	}
}

func TestMemoryStoreListDriversFilter(t *testing.T) {
	m := NewMemoryStore()
	m.UpsertDriver(models.Driver{ID: "d1", Status: models.DriverAvailable})
	m.UpsertDriver(models.Driver{ID: "d2", Status: models.DriverBusy})
	m.UpsertDriver(models.Driver{ID: "d3", Status: models.DriverAvailable})

	all, _ := m.ListDrivers(DriverFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 drivers, got %d", len(all))
	}
	avail, _ := m.ListDrivers(DriverFilter{Status: models.DriverAvailable})
	if len(avail) != 2 {
		t.Fatalf("expected 2 available drivers, got %d", len(avail))
	}
}

func TestMemoryStoreListTripsFilter(t *testing.T) {
	m := NewMemoryStore()
	m.UpsertTrip(models.Trip{ID: "t1", RiderID: "r1", DriverID: "d1", Status: models.TripCompleted})
	m.UpsertTrip(models.Trip{ID: "t2", RiderID: "r1", Status: models.TripRequested})
	m.UpsertTrip(models.Trip{ID: "t3", RiderID: "r2", DriverID: "d1", Status: models.TripAssigned})

	byRider, _ := m.ListTrips(TripFilter{RiderID: "r1"})
	if len(byRider) != 2 {
		t.Fatalf("expected 2 trips for r1, got %d", len(byRider))
	}
	byDriver, _ := m.ListTrips(TripFilter{DriverID: "d1"})
	if len(byDriver) != 2 {
		t.Fatalf("expected 2 trips for d1, got %d", len(byDriver))
	}
	completed, _ := m.ListTrips(TripFilter{Status: models.TripCompleted})
	if len(completed) != 1 || completed[0].ID != "t1" {
		t.Fatalf("unexpected completed trips %+v", completed)
	}
	both, _ := m.ListTrips(TripFilter{RiderID: "r1", DriverID: "d1"})
	if len(both) != 1 || both[0].ID != "t1" {
		t.Fatalf("unexpected combined filter result %+v", both)
	}
}

func TestMemoryStoreHandsOutCopies(t *testing.T) {
	m := NewMemoryStore()
	est := time.Now()
	m.UpsertTrip(models.Trip{ID: "t1", Status: models.TripAssigned, EstimatedArrival: &est})

	got, _ := m.Trip("t1")
	*got.EstimatedArrival = got.EstimatedArrival.Add(time.Hour)
	got.Status = models.TripCompleted

	again, _ := m.Trip("t1")
	if again.Status != models.TripAssigned {
		t.Fatal("caller mutation leaked into store")
	}
	if !again.EstimatedArrival.Equal(est) {
		t.Fatal("pointer field shared with caller")
	}
}

func TestMemoryStoreRiderLocationCopied(t *testing.T) {
	m := NewMemoryStore()
	loc := models.Location{Latitude: 1, Longitude: 2}
	m.UpsertRider(models.Rider{ID: "r1", Location: &loc})

	got, _ := m.Rider("r1")
	got.Location.Latitude = 99

	again, _ := m.Rider("r1")
	if again.Location.Latitude != 1 {
		t.Fatal("rider location shared with caller")
	}
}
