package bus

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/store"
)

// LocationSource produces the next GPS fix for a driver. The simulated
// source below stands in for a real telemetry feed; swapping in a genuine
// one changes nothing else.
type LocationSource interface {
	Next(driverID string) models.Location
}

// Sink applies a synthesized location update. The engine wires this to its
// own UpdateDriverLocation so generated fixes flow through the same path
// as client-originated ones.
type Sink func(driverID string, loc models.Location) error

// Generator periodically feeds a location update for every known driver
// into the sink.
type Generator struct {
	store    store.Store
	source   LocationSource
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
}

func NewGenerator(s store.Store, src LocationSource, sink Sink, interval time.Duration, logger *slog.Logger) *Generator {
	return &Generator{store: s, source: src, sink: sink, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Generator) tick() {
	drivers, err := g.store.ListDrivers(store.DriverFilter{})
	if err != nil {
		g.logger.Error("generator list drivers", "error", err)
		return
	}
	for _, d := range drivers {
		if d.Status == models.DriverOffline {
			continue
		}
		if err := g.sink(d.ID, g.source.Next(d.ID)); err != nil {
			g.logger.Warn("generator location update rejected", "driver_id", d.ID, "error", err)
		}
	}
}

// SimSource synthesizes fixes scattered around a fixed center, the way the
// mock telemetry feed behaves: a random point within radiusKm, a random
// heading, stamped with the current time.
type SimSource struct {
	CenterLat float64
	CenterLon float64
	RadiusKm  float64
}

func (s SimSource) Next(driverID string) models.Location {
	// ~111.32 km per degree of latitude.
	r := s.RadiusKm / 111.32 * rand.Float64()
	theta := rand.Float64() * 2 * math.Pi
	return models.Location{
		Latitude:  s.CenterLat + r*math.Cos(theta),
		Longitude: s.CenterLon + r*math.Sin(theta),
		Heading:   rand.Intn(360),
		Timestamp: time.Now(),
	}
}
