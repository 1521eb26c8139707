// Package httpapi is the HTTP adapter over the dispatch engine. It only
// translates requests into engine calls and bus subscriptions; no fleet
// state lives here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Maaady/RidePulse/internal/engine"
	"github.com/Maaady/RidePulse/internal/lifecycle"
	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/store"
)

type Server struct {
	engine *engine.Engine
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(e *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{engine: e, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/trips", s.handleRequestTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips", s.handleListTrips).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}", s.handleGetTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/status", s.handleTripStatus).Methods("PATCH")
	s.mux.HandleFunc("/api/v1/drivers", s.handleListDrivers).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}/location", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}/status", s.handleDriverStatus).Methods("PATCH")
	s.mux.HandleFunc("/api/v1/riders/{rider_id}/location", s.handleRiderLocation).Methods("POST")
	s.mux.HandleFunc("/api/v1/analytics", s.handleAnalytics).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{client_id}", s.handleWS)
}

type tripRequest struct {
	RiderID     string          `json:"rider_id"`
	Pickup      models.GeoPoint `json:"pickup"`
	Destination models.GeoPoint `json:"destination"`
}

func (s *Server) handleRequestTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RiderID == "" {
		http.Error(w, "rider_id is required", http.StatusBadRequest)
		return
	}
	trip, err := s.engine.RequestTrip(req.RiderID, req.Pickup, req.Destination)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, trip)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trips, err := s.engine.Trips(store.TripFilter{
		Status:   models.TripStatus(q.Get("status")),
		RiderID:  q.Get("rider_id"),
		DriverID: q.Get("driver_id"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trips)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.engine.Trip(mux.Vars(r)["trip_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trip)
}

type tripStatusRequest struct {
	Status models.TripStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

func (s *Server) handleTripStatus(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var req tripStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var err error
	if req.Status == models.TripCancelled {
		err = s.engine.CancelTrip(tripID, req.Reason)
	} else {
		err = s.engine.UpdateTripStatus(tripID, req.Status)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.engine.Drivers()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, drivers)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.UpdateDriverLocation(mux.Vars(r)["driver_id"], loc); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type driverStatusRequest struct {
	Status models.DriverStatus `json:"status"`
}

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	var req driverStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.UpdateDriverStatus(mux.Vars(r)["driver_id"], req.Status); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRiderLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.UpdateRiderLocation(mux.Vars(r)["rider_id"], loc); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Analytics()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrDriverOnTrip),
		errors.Is(err, lifecycle.ErrDriverUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
