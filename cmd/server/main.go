package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/Maaady/RidePulse/internal/bus"
	"github.com/Maaady/RidePulse/internal/config"
	"github.com/Maaady/RidePulse/internal/engine"
	"github.com/Maaady/RidePulse/internal/geo"
	httpapi "github.com/Maaady/RidePulse/internal/http"
	"github.com/Maaady/RidePulse/internal/ingest"
	"github.com/Maaady/RidePulse/internal/logging"
	"github.com/Maaady/RidePulse/internal/matcher"
	"github.com/Maaady/RidePulse/internal/store"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var st store.Store
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			if err := runMigrations(cfg.PGDSN); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
		}
		ps, err := store.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		st = ps
		logger.Info("using postgres store")
	} else {
		st = store.NewMemoryStore()
		logger.Info("using in-memory store")
	}

	var idx matcher.DriverIndex
	if cfg.RedisAddr != "" {
		idx = matcher.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		logger.Info("using redis driver index", "addr", cfg.RedisAddr)
	} else {
		idx = matcher.NewMemoryIndex(st)
	}

	b := bus.New(logging.Component(logger, "bus"), cfg.JitterMin, cfg.JitterMax)

	eng := engine.New(engine.Options{
		Store:  st,
		Index:  idx,
		Bus:    b,
		Logger: logging.Component(logger, "engine"),
		Fare:   geo.FarePolicy{BaseFare: cfg.BaseFare, PerKmRate: cfg.PerKmRate},
		Matcher: matcher.Config{
			TopN:             cfg.MatcherTopN,
			SpeedKmh:         cfg.SpeedKmh,
			DispatchDelayMin: cfg.DispatchDelayMin,
			DispatchDelayMax: cfg.DispatchDelayMax,
			RetryInterval:    cfg.MatchRetry,
			MaxWait:          cfg.MatchMaxWait,
		},
		Source: bus.SimSource{
			CenterLat: 28.6139,
			CenterLon: 77.2090,
			RadiusKm:  5,
		},
		GeneratorInterval: cfg.GeneratorInterval,
	})

	if cfg.SeedDemoFleet {
		if err := eng.SeedDemoFleet(); err != nil {
			logger.Error("seed failed", "error", err)
			os.Exit(1)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		exp := ingest.NewKafkaExporter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer exp.Close()
		unsub := exp.Attach(b)
		defer unsub()
		logger.Info("kafka location export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	eng.Start(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(eng, logging.Component(logger, "http")),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("ridepulse listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	eng.Shutdown()
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_fleet.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
