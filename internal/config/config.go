package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch process.
// Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN         string
	RunMigrations bool

	// Pricing policy; see geo.FarePolicy.
	BaseFare  float64
	PerKmRate float64

	// Matching behaviour.
	SpeedKmh         float64
	MatcherTopN      int
	DispatchDelayMin time.Duration
	DispatchDelayMax time.Duration
	MatchRetry       time.Duration
	MatchMaxWait     time.Duration

	// Realtime bus behaviour.
	JitterMin         time.Duration
	JitterMax         time.Duration
	GeneratorInterval time.Duration

	SeedDemoFleet bool
	LogLevel      string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		RedisGeoKey: "drivers_geo",
		KafkaTopic:  "driver-locations",

		BaseFare:  50,
		PerKmRate: 15,

		SpeedKmh:         30,
		MatcherTopN:      16,
		DispatchDelayMin: 2 * time.Second,
		DispatchDelayMax: 5 * time.Second,
		MatchRetry:       time.Second,
		MatchMaxWait:     2 * time.Minute,

		JitterMin:         10 * time.Millisecond,
		JitterMax:         30 * time.Millisecond,
		GeneratorInterval: 2 * time.Second,

		SeedDemoFleet: true,
		LogLevel:      "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	setFloatFromEnv(&cfg.BaseFare, "FARE_BASE", &errs)
	setFloatFromEnv(&cfg.PerKmRate, "FARE_PER_KM", &errs)

	setFloatFromEnv(&cfg.SpeedKmh, "MATCHER_SPEED_KMH", &errs)
	setIntFromEnv(&cfg.MatcherTopN, "MATCHER_TOP_N", &errs)
	setDurationFromEnv(&cfg.DispatchDelayMin, "DISPATCH_DELAY_MIN", &errs)
	setDurationFromEnv(&cfg.DispatchDelayMax, "DISPATCH_DELAY_MAX", &errs)
	setDurationFromEnv(&cfg.MatchRetry, "MATCH_RETRY_INTERVAL", &errs)
	setDurationFromEnv(&cfg.MatchMaxWait, "MATCH_MAX_WAIT", &errs)

	setDurationFromEnv(&cfg.JitterMin, "BUS_JITTER_MIN", &errs)
	setDurationFromEnv(&cfg.JitterMax, "BUS_JITTER_MAX", &errs)
	setDurationFromEnv(&cfg.GeneratorInterval, "GENERATOR_INTERVAL", &errs)

	if v := os.Getenv("SEED_DEMO_FLEET"); v != "" {
		cfg.SeedDemoFleet = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.MatcherTopN <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TOP_N must be > 0"))
	}
	if cfg.JitterMax < cfg.JitterMin {
		errs = append(errs, fmt.Errorf("BUS_JITTER_MAX must be >= BUS_JITTER_MIN"))
	}
	if cfg.DispatchDelayMax < cfg.DispatchDelayMin {
		errs = append(errs, fmt.Errorf("DISPATCH_DELAY_MAX must be >= DISPATCH_DELAY_MIN"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
