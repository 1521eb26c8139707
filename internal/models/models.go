package models

import "time"

// Location is a timestamped GPS fix.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   int       `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// GeoPoint is a named place, used for trip endpoints.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

type VehicleType string

const (
	VehicleCar  VehicleType = "car"
	VehicleBike VehicleType = "bike"
	VehicleAuto VehicleType = "auto"
)

type Driver struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	VehicleType   VehicleType  `json:"vehicle_type"`
	VehicleNumber string       `json:"vehicle_number"`
	Location      Location     `json:"location"`
	Status        DriverStatus `json:"status"`
	Rating        float64      `json:"rating"` // 0..5
	TotalTrips    int          `json:"total_trips"`
}

type Rider struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Location *Location `json:"location,omitempty"`
	Rating   float64   `json:"rating"`
}

type TripStatus string

const (
	TripRequested  TripStatus = "requested"
	TripAssigned   TripStatus = "assigned"
	TripPickedUp   TripStatus = "picked_up"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// Trip is the ride aggregate. DriverID stays empty until the trip reaches
// assigned; Fare and DistanceKm are fixed at creation and never recomputed.
type Trip struct {
	ID               string     `json:"id"`
	RiderID          string     `json:"rider_id"`
	DriverID         string     `json:"driver_id,omitempty"`
	Pickup           GeoPoint   `json:"pickup"`
	Destination      GeoPoint   `json:"destination"`
	Status           TripStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	ActualArrival    *time.Time `json:"actual_arrival,omitempty"`
	Fare             int64      `json:"fare"`
	DistanceKm       float64    `json:"distance_km"`
	DurationMin      int        `json:"duration_min,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
}
