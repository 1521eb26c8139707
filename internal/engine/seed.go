package engine

import (
	"math/rand"

	"github.com/Maaady/RidePulse/internal/models"
)

// Demo fleet centre: Connaught Place, Delhi.
const (
	seedCenterLat = 28.6139
	seedCenterLon = 77.2090
)

var seedDrivers = []models.Driver{
	{ID: "driver_1", Name: "Rajesh Kumar", Phone: "+91-9876543210", VehicleType: models.VehicleCar, VehicleNumber: "DL01AB1234", Rating: 4.8},
	{ID: "driver_2", Name: "Priya Sharma", Phone: "+91-9876543211", VehicleType: models.VehicleAuto, VehicleNumber: "DL02CD5678", Rating: 4.6},
	{ID: "driver_3", Name: "Amit Singh", Phone: "+91-9876543212", VehicleType: models.VehicleBike, VehicleNumber: "DL03EF9012", Rating: 4.9},
	{ID: "driver_4", Name: "Sunita Patel", Phone: "+91-9876543213", VehicleType: models.VehicleCar, VehicleNumber: "DL04GH3456", Rating: 4.7},
	{ID: "driver_5", Name: "Vikram Gupta", Phone: "+91-9876543214", VehicleType: models.VehicleAuto, VehicleNumber: "DL05IJ7890", Rating: 4.5},
	{ID: "driver_6", Name: "Kavya Reddy", Phone: "+91-9876543215", VehicleType: models.VehicleCar, VehicleNumber: "DL06KL1234", Rating: 4.8},
	{ID: "driver_7", Name: "Rohit Jain", Phone: "+91-9876543216", VehicleType: models.VehicleBike, VehicleNumber: "DL07MN5678", Rating: 4.6},
	{ID: "driver_8", Name: "Neha Agarwal", Phone: "+91-9876543217", VehicleType: models.VehicleAuto, VehicleNumber: "DL08OP9012", Rating: 4.9},
}

var seedRiders = []models.Rider{
	{ID: "rider_1", Name: "Ananya Mehta", Phone: "+91-8765432109", Rating: 4.7},
	{ID: "rider_2", Name: "Arjun Kapoor", Phone: "+91-8765432108", Rating: 4.8},
	{ID: "rider_3", Name: "Isha Verma", Phone: "+91-8765432107", Rating: 4.6},
}

// SeedDemoFleet onboards the demo drivers and riders, scattered around the
// city centre. Drivers start available; the generator keeps them moving.
func (e *Engine) SeedDemoFleet() error {
	now := e.now()
	for _, d := range seedDrivers {
		d.Status = models.DriverAvailable
		d.TotalTrips = 50 + rand.Intn(450)
		d.Location = models.Location{
			Latitude:  seedCenterLat + (rand.Float64()-0.5)*0.1,
			Longitude: seedCenterLon + (rand.Float64()-0.5)*0.1,
			Heading:   rand.Intn(360),
			Timestamp: now,
		}
		if err := e.store.UpsertDriver(d); err != nil {
			return err
		}
		if err := e.index.Upsert(d); err != nil {
			e.logger.Warn("driver index upsert failed", "driver_id", d.ID, "error", err)
		}
	}
	for _, r := range seedRiders {
		r.Location = &models.Location{
			Latitude:  seedCenterLat + (rand.Float64()-0.5)*0.05,
			Longitude: seedCenterLon + (rand.Float64()-0.5)*0.05,
			Timestamp: now,
		}
		if err := e.store.UpsertRider(r); err != nil {
			return err
		}
	}
	e.refreshOnlineGauge()
	e.logger.Info("demo fleet seeded", "drivers", len(seedDrivers), "riders", len(seedRiders))
	return nil
}
