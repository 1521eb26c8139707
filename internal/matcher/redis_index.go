package matcher

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maaady/RidePulse/internal/models"
)

// RedisIndex keeps driver positions in a Redis GEO set with a metadata
// hash per driver, so multiple processes (for instance the Kafka location
// consumer) can share one live index.
type RedisIndex struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key, ctx: context.Background()}
}

func (r *RedisIndex) Upsert(d models.Driver) error {
	if err := r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{
		Name:      d.ID,
		Longitude: d.Location.Longitude,
		Latitude:  d.Location.Latitude,
	}).Err(); err != nil {
		return err
	}
	return r.client.HSet(r.ctx, metaKey(d.ID), map[string]interface{}{
		"status":  string(d.Status),
		"rating":  strconv.FormatFloat(d.Rating, 'f', 2, 64),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Nearby(lat, lon float64, limit int) ([]Candidate, error) {
	count := limit
	if count <= 0 {
		count = 100
	}
	res, err := r.client.GeoSearchLocation(r.ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     50,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      count,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(res))
	for _, g := range res {
		status, err := r.client.HGet(r.ctx, metaKey(g.Name), "status").Result()
		if err == nil && status != string(models.DriverAvailable) {
			continue
		}
		out = append(out, Candidate{DriverID: g.Name, DistanceKm: g.Dist})
	}
	// GEOSEARCH ASC orders by distance only; equal distances must still
	// break on the lowest driver ID
	sortCandidates(out)
	return out, nil
}

func metaKey(id string) string { return "driver:meta:" + id }
