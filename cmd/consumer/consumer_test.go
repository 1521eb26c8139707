package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maaady/RidePulse/internal/models"
)

type fakeUpdater struct {
	geoCalls  int
	hsetCalls int
	geoFail   int // fail the first N GeoAdd calls
	hsetFail  int // fail the first N HSet calls
	lastGeo   *redis.GeoLocation
	lastKey   string
	lastMeta  map[string]interface{}
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.geoFail {
		return errors.New("geoadd down")
	}
	f.lastGeo = loc
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hsetCalls++
	if f.hsetCalls <= f.hsetFail {
		return errors.New("hset down")
	}
	f.lastKey = key
	f.lastMeta = values
	return nil
}

func sampleUpdate() models.LocationUpdate {
	return models.LocationUpdate{
		DriverID: "driver_7",
		Status:   models.DriverAvailable,
		Location: models.Location{
			Latitude:  28.6139,
			Longitude: 77.2090,
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestUpdateIndexWritesGeoAndMeta(t *testing.T) {
	f := &fakeUpdater{}
	if err := updateIndexWithRetry(context.Background(), f, "drivers_geo", sampleUpdate(), 3, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if f.geoCalls != 1 || f.hsetCalls != 1 {
		t.Fatalf("expected single round trip, got geo=%d hset=%d", f.geoCalls, f.hsetCalls)
	}
	if f.lastGeo.Name != "driver_7" || f.lastGeo.Latitude != 28.6139 {
		t.Fatalf("unexpected geo entry %+v", f.lastGeo)
	}
	if f.lastKey != "driver:meta:driver_7" {
		t.Fatalf("unexpected meta key %q", f.lastKey)
	}
	if f.lastMeta["status"] != "available" {
		t.Fatalf("unexpected status %v", f.lastMeta["status"])
	}
	if f.lastMeta["updated"] != "2025-06-01T12:00:00Z" {
		t.Fatalf("unexpected updated %v", f.lastMeta["updated"])
	}
}

func TestUpdateIndexRetriesTransientGeoError(t *testing.T) {
	f := &fakeUpdater{geoFail: 2}
	if err := updateIndexWithRetry(context.Background(), f, "drivers_geo", sampleUpdate(), 3, time.Millisecond); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if f.geoCalls != 3 {
		t.Fatalf("expected 3 geo attempts, got %d", f.geoCalls)
	}
}

func TestUpdateIndexRetriesTransientHSetError(t *testing.T) {
	f := &fakeUpdater{hsetFail: 1}
	if err := updateIndexWithRetry(context.Background(), f, "drivers_geo", sampleUpdate(), 3, time.Millisecond); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if f.hsetCalls != 2 {
		t.Fatalf("expected 2 hset attempts, got %d", f.hsetCalls)
	}
}

func TestUpdateIndexGivesUpAfterAttempts(t *testing.T) {
	f := &fakeUpdater{geoFail: 10}
	err := updateIndexWithRetry(context.Background(), f, "drivers_geo", sampleUpdate(), 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if f.geoCalls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", f.geoCalls)
	}
}
