package models

import "time"

// Bus topics. Each topic carries exactly one payload type so consumers can
// type-assert instead of digging through loose maps.
const (
	TopicLocationUpdate = "location_update"
	TopicTripStatus     = "trip_status"
)

// LocationUpdate is the payload published on TopicLocationUpdate.
type LocationUpdate struct {
	DriverID string       `json:"driver_id"`
	Location Location     `json:"location"`
	Status   DriverStatus `json:"status"`
}

// TripStatusEvent is the payload published on TopicTripStatus after every
// successful lifecycle transition. Derived fields are only set where the
// transition produced them (fare and duration on completion, and so on).
type TripStatusEvent struct {
	TripID           string     `json:"trip_id"`
	Status           TripStatus `json:"status"`
	DriverID         string     `json:"driver_id,omitempty"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	Fare             int64      `json:"fare,omitempty"`
	DurationMin      int        `json:"duration_min,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
}
