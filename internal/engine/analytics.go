package engine

import (
	"sort"

	"github.com/Maaady/RidePulse/internal/models"
	"github.com/Maaady/RidePulse/internal/store"
)

// Analytics is an on-demand aggregate over the fleet and trip history;
// nothing here is maintained incrementally.
type Analytics struct {
	TotalTrips     int           `json:"total_trips"`
	CompletedTrips int           `json:"completed_trips"`
	CompletionRate float64       `json:"completion_rate"`
	ActiveDrivers  int           `json:"active_drivers"`
	TotalDrivers   int           `json:"total_drivers"`
	AverageRating  float64       `json:"average_rating"`
	TotalRevenue   int64         `json:"total_revenue"`
	RecentTrips    []models.Trip `json:"recent_trips"`
}

const recentTripCount = 10

func (e *Engine) Analytics() (Analytics, error) {
	trips, err := e.store.ListTrips(store.TripFilter{})
	if err != nil {
		return Analytics{}, err
	}
	drivers, err := e.store.ListDrivers(store.DriverFilter{})
	if err != nil {
		return Analytics{}, err
	}

	a := Analytics{TotalTrips: len(trips), TotalDrivers: len(drivers)}
	for _, t := range trips {
		if t.Status == models.TripCompleted {
			a.CompletedTrips++
			a.TotalRevenue += t.Fare
		}
	}
	if a.TotalTrips > 0 {
		a.CompletionRate = float64(a.CompletedTrips) / float64(a.TotalTrips)
	}

	var ratingSum float64
	for _, d := range drivers {
		if d.Status != models.DriverOffline {
			a.ActiveDrivers++
		}
		ratingSum += d.Rating
	}
	if len(drivers) > 0 {
		a.AverageRating = ratingSum / float64(len(drivers))
	}

	sort.Slice(trips, func(i, j int) bool {
		return trips[i].CreatedAt.After(trips[j].CreatedAt)
	})
	if len(trips) > recentTripCount {
		trips = trips[:recentTripCount]
	}
	a.RecentTrips = trips
	return a, nil
}
