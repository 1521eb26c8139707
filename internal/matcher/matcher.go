// Package matcher assigns the nearest available driver to pending trips.
// Instead of the classic one-shot dispatch timer that strands a trip when
// no driver happens to be free at that instant, it keeps a pending queue:
// the run loop re-attempts matching whenever a driver frees up or a retry
// tick fires, and gives up with a no_driver cancellation once a trip has
// waited past MaxWait.
package matcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/Maaady/RidePulse/internal/geo"
	"github.com/Maaady/RidePulse/internal/lifecycle"
	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/observability"
	"github.com/Maaady/RidePulse/internal/store"
)

// CancelReasonNoDriver marks trips cancelled because no driver freed up
// within MaxWait.
const CancelReasonNoDriver = "no_driver"

type Config struct {
	// TopN caps how many candidates one attempt considers.
	TopN int
	// SpeedKmh feeds the pickup ETA estimate.
	SpeedKmh float64
	// DispatchDelayMin/Max bound the simulated dispatch latency before a
	// freshly requested trip is first attempted. Zero means immediately.
	DispatchDelayMin time.Duration
	DispatchDelayMax time.Duration
	// RetryInterval is how often the run loop re-sweeps the pending queue.
	RetryInterval time.Duration
	// MaxWait is how long a trip may stay pending before it is cancelled
	// with reason no_driver. Zero disables the deadline.
	MaxWait time.Duration
}

type Service struct {
	store     store.Store
	index     DriverIndex
	lifecycle *lifecycle.Service
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]pendingTrip

	wake chan struct{}
}

type pendingTrip struct {
	enqueuedAt time.Time
	readyAt    time.Time
}

func NewService(st store.Store, idx DriverIndex, lc *lifecycle.Service, logger *slog.Logger, cfg Config) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = 16
	}
	if cfg.SpeedKmh <= 0 {
		cfg.SpeedKmh = geo.DefaultSpeedKmh
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	return &Service{
		store:     st,
		index:     idx,
		lifecycle: lc,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		pending:   make(map[string]pendingTrip),
		wake:      make(chan struct{}, 1),
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Enqueue registers a trip for matching. The first attempt happens after
// the simulated dispatch delay; later attempts are driven by Wake and the
// retry tick.
func (s *Service) Enqueue(tripID string) {
	now := s.now()
	delay := s.dispatchDelay()
	s.mu.Lock()
	s.pending[tripID] = pendingTrip{enqueuedAt: now, readyAt: now.Add(delay)}
	observability.PendingTrips.Set(float64(len(s.pending)))
	s.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, s.Wake)
	} else {
		s.Wake()
	}
}

// Wake nudges the run loop. Call it whenever a driver becomes available.
func (s *Service) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run processes the pending queue until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
		s.Sweep()
	}
}

// Sweep attempts every due pending trip once, oldest first, and enforces
// the MaxWait deadline.
func (s *Service) Sweep() {
	now := s.now()

	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id, p := range s.pending {
		if now.Before(p.readyAt) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.pending[ids[i]].enqueuedAt.Before(s.pending[ids[j]].enqueuedAt)
	})
	byID := make(map[string]pendingTrip, len(ids))
	for _, id := range ids {
		byID[id] = s.pending[id]
	}
	s.mu.Unlock()

	for _, id := range ids {
		settled := s.attempt(id)
		if !settled && s.cfg.MaxWait > 0 && now.Sub(byID[id].enqueuedAt) >= s.cfg.MaxWait {
			s.expire(id)
			settled = true
		}
		if settled {
			s.drop(id)
		}
	}
}

// attempt runs one match attempt. It reports true when the trip no longer
// needs matching: assigned, gone, or already out of requested state. A
// stale or already-handled trip is a deliberate no-op so duplicate
// scheduling stays harmless.
func (s *Service) attempt(tripID string) bool {
	t, err := s.store.Trip(tripID)
	if err != nil {
		return true
	}
	if t.Status != models.TripRequested {
		return true
	}

	cands, err := s.index.Nearby(t.Pickup.Latitude, t.Pickup.Longitude, s.cfg.TopN)
	if err != nil {
		s.logger.Error("driver index query failed", "trip_id", tripID, "error", err)
		return false
	}
	if len(cands) == 0 {
		observability.MatchMisses.Inc()
		return false
	}

	for _, c := range cands {
		etaMin := geo.ETAMinutes(c.DistanceKm, s.cfg.SpeedKmh)
		arrival := s.now().Add(time.Duration(etaMin) * time.Minute)
		err := s.lifecycle.Transition(tripID, models.TripAssigned, lifecycle.Context{
			DriverID:         c.DriverID,
			EstimatedArrival: arrival,
		})
		switch {
		case err == nil:
			observability.MatchesTotal.Inc()
			s.logger.Info("trip matched",
				"trip_id", tripID, "driver_id", c.DriverID,
				"distance_km", c.DistanceKm, "eta_min", etaMin)
			return true
		case errors.Is(err, lifecycle.ErrDriverUnavailable), errors.Is(err, store.ErrNotFound):
			// index was stale; try the next candidate
			continue
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			// trip changed underneath us (cancelled mid-attempt, ...)
			return true
		default:
			// transient failure; keep the trip pending so the retry tick
			// and the max-wait deadline still govern it
			s.logger.Error("assignment failed",
				"trip_id", tripID, "driver_id", c.DriverID, "error", err)
			return false
		}
	}
	observability.MatchMisses.Inc()
	return false
}

func (s *Service) expire(tripID string) {
	err := s.lifecycle.Transition(tripID, models.TripCancelled, lifecycle.Context{
		Reason: CancelReasonNoDriver,
	})
	if err != nil {
		s.logger.Warn("max-wait cancel failed", "trip_id", tripID, "error", err)
		return
	}
	s.logger.Info("trip expired unmatched", "trip_id", tripID)
}

func (s *Service) drop(tripID string) {
	s.mu.Lock()
	delete(s.pending, tripID)
	observability.PendingTrips.Set(float64(len(s.pending)))
	s.mu.Unlock()
}

// PendingCount reports how many trips are waiting for a driver.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) dispatchDelay() time.Duration {
	if s.cfg.DispatchDelayMax <= 0 {
		return 0
	}
	if s.cfg.DispatchDelayMax <= s.cfg.DispatchDelayMin {
		return s.cfg.DispatchDelayMin
	}
	span := s.cfg.DispatchDelayMax - s.cfg.DispatchDelayMin
	return s.cfg.DispatchDelayMin + time.Duration(rand.Int63n(int64(span)))
}
