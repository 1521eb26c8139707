package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Maaady/RidePulse/internal/models"
)

// PostgresStore satisfies Store against the schema in
// migrations/001_create_fleet.sql. It exists so the engine can run with
// durable history without any contract change; the memory store remains
// the default.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) UpsertDriver(d models.Driver) error {
	_, err := p.db.Exec(`
		INSERT INTO drivers(id, name, phone, vehicle_type, vehicle_number, lat, lon, heading, located_at, status, rating, total_trips)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, phone=EXCLUDED.phone, vehicle_type=EXCLUDED.vehicle_type,
			vehicle_number=EXCLUDED.vehicle_number, lat=EXCLUDED.lat, lon=EXCLUDED.lon,
			heading=EXCLUDED.heading, located_at=EXCLUDED.located_at, status=EXCLUDED.status,
			rating=EXCLUDED.rating, total_trips=EXCLUDED.total_trips`,
		d.ID, d.Name, d.Phone, string(d.VehicleType), d.VehicleNumber,
		d.Location.Latitude, d.Location.Longitude, d.Location.Heading, d.Location.Timestamp,
		string(d.Status), d.Rating, d.TotalTrips)
	return err
}

func (p *PostgresStore) Driver(id string) (models.Driver, error) {
	row := p.db.QueryRow(`
		SELECT id, name, phone, vehicle_type, vehicle_number, lat, lon, heading, located_at, status, rating, total_trips
		FROM drivers WHERE id=$1`, id)
	return scanDriver(row)
}

func (p *PostgresStore) ListDrivers(f DriverFilter) ([]models.Driver, error) {
	q := `SELECT id, name, phone, vehicle_type, vehicle_number, lat, lon, heading, located_at, status, rating, total_trips FROM drivers`
	args := []any{}
	if f.Status != "" {
		q += ` WHERE status=$1`
		args = append(args, string(f.Status))
	}
	rows, err := p.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpsertRider(r models.Rider) error {
	var lat, lon sql.NullFloat64
	if r.Location != nil {
		lat = sql.NullFloat64{Float64: r.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: r.Location.Longitude, Valid: true}
	}
	_, err := p.db.Exec(`
		INSERT INTO riders(id, name, phone, lat, lon, rating)
		VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, phone=EXCLUDED.phone, lat=EXCLUDED.lat, lon=EXCLUDED.lon, rating=EXCLUDED.rating`,
		r.ID, r.Name, r.Phone, lat, lon, r.Rating)
	return err
}

func (p *PostgresStore) Rider(id string) (models.Rider, error) {
	var r models.Rider
	var lat, lon sql.NullFloat64
	err := p.db.QueryRow(`SELECT id, name, phone, lat, lon, rating FROM riders WHERE id=$1`, id).
		Scan(&r.ID, &r.Name, &r.Phone, &lat, &lon, &r.Rating)
	if err == sql.ErrNoRows {
		return models.Rider{}, ErrNotFound
	}
	if err != nil {
		return models.Rider{}, err
	}
	if lat.Valid && lon.Valid {
		r.Location = &models.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return r, nil
}

func (p *PostgresStore) UpsertTrip(t models.Trip) error {
	_, err := p.db.Exec(`
		INSERT INTO trips(id, rider_id, driver_id, pickup_lat, pickup_lon, pickup_addr,
			dest_lat, dest_lon, dest_addr, status, created_at, estimated_arrival,
			actual_arrival, fare, distance_km, duration_min, cancel_reason)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			driver_id=EXCLUDED.driver_id, status=EXCLUDED.status,
			estimated_arrival=EXCLUDED.estimated_arrival, actual_arrival=EXCLUDED.actual_arrival,
			duration_min=EXCLUDED.duration_min, cancel_reason=EXCLUDED.cancel_reason`,
		t.ID, t.RiderID, nullString(t.DriverID),
		t.Pickup.Latitude, t.Pickup.Longitude, t.Pickup.Address,
		t.Destination.Latitude, t.Destination.Longitude, t.Destination.Address,
		string(t.Status), t.CreatedAt, nullTime(t.EstimatedArrival), nullTime(t.ActualArrival),
		t.Fare, t.DistanceKm, t.DurationMin, nullString(t.CancelReason))
	return err
}

func (p *PostgresStore) Trip(id string) (models.Trip, error) {
	row := p.db.QueryRow(tripSelect+` WHERE id=$1`, id)
	return scanTrip(row)
}

func (p *PostgresStore) ListTrips(f TripFilter) ([]models.Trip, error) {
	q := tripSelect
	args := []any{}
	where := ""
	add := func(cond string, v any) {
		args = append(args, v)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, len(args))
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	}
	if f.RiderID != "" {
		add("rider_id=$%d", f.RiderID)
	}
	if f.DriverID != "" {
		add("driver_id=$%d", f.DriverID)
	}
	rows, err := p.db.Query(q+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const tripSelect = `SELECT id, rider_id, driver_id, pickup_lat, pickup_lon, pickup_addr,
	dest_lat, dest_lon, dest_addr, status, created_at, estimated_arrival,
	actual_arrival, fare, distance_km, duration_min, cancel_reason FROM trips`

type scanner interface {
	Scan(dest ...any) error
}

func scanDriver(s scanner) (models.Driver, error) {
	var d models.Driver
	var vt, st string
	err := s.Scan(&d.ID, &d.Name, &d.Phone, &vt, &d.VehicleNumber,
		&d.Location.Latitude, &d.Location.Longitude, &d.Location.Heading, &d.Location.Timestamp,
		&st, &d.Rating, &d.TotalTrips)
	if err == sql.ErrNoRows {
		return models.Driver{}, ErrNotFound
	}
	if err != nil {
		return models.Driver{}, err
	}
	d.VehicleType = models.VehicleType(vt)
	d.Status = models.DriverStatus(st)
	return d, nil
}

func scanTrip(s scanner) (models.Trip, error) {
	var t models.Trip
	var driverID, cancelReason sql.NullString
	var est, act sql.NullTime
	var st string
	err := s.Scan(&t.ID, &t.RiderID, &driverID,
		&t.Pickup.Latitude, &t.Pickup.Longitude, &t.Pickup.Address,
		&t.Destination.Latitude, &t.Destination.Longitude, &t.Destination.Address,
		&st, &t.CreatedAt, &est, &act, &t.Fare, &t.DistanceKm, &t.DurationMin, &cancelReason)
	if err == sql.ErrNoRows {
		return models.Trip{}, ErrNotFound
	}
	if err != nil {
		return models.Trip{}, err
	}
	t.Status = models.TripStatus(st)
	t.DriverID = driverID.String
	t.CancelReason = cancelReason.String
	if est.Valid {
		t.EstimatedArrival = &est.Time
	}
	if act.Valid {
		t.ActualArrival = &act.Time
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
