// Package geo holds the pure geographic and pricing math used by the
// dispatcher. Everything here is side-effect free.
package geo

import "math"

const earthRadiusKm = 6371.0

// DefaultSpeedKmh is the assumed average city speed for ETA estimates.
const DefaultSpeedKmh = 30.0

// FarePolicy captures the pricing constants. The zero value is not useful;
// use DefaultFarePolicy or load one from configuration.
type FarePolicy struct {
	BaseFare  float64
	PerKmRate float64
}

func DefaultFarePolicy() FarePolicy {
	return FarePolicy{BaseFare: 50, PerKmRate: 15}
}

// DistanceKm returns the haversine great-circle distance in kilometers
// between two points given in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// ETAMinutes estimates travel time in whole minutes at the given average
// speed, rounding up. Non-positive speeds fall back to DefaultSpeedKmh.
func ETAMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return int(math.Ceil(distanceKm / speedKmh * 60))
}

// Fare computes the trip price in whole currency units, rounding up.
func (p FarePolicy) Fare(distanceKm float64) int64 {
	return int64(math.Ceil(distanceKm*p.PerKmRate + p.BaseFare))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
