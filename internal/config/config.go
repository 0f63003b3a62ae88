package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

type Pool struct {
	Ladder string
	Region string
}

func (p Pool) String() string {
	return p.Ladder + ":" + p.Region
}

type Config struct {
	ServiceName string
	DBPath      string
	ServerPort  string
	LogLevel    string

	BusDriver     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ComputeAPIURL   string
	ComputeAPIKey   string
	ComputeProvider string
	ComputeRegion   string

	ProvisionTimeout       time.Duration
	ProvisionSweepInterval time.Duration
	MatchmakerInterval     time.Duration
	OutboxInterval         time.Duration
	MatchPools             []Pool
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	var err error
	cfg := &Config{
		ServiceName:     getEnv("SERVICE_NAME", ""),
		DBPath:          getEnv("DB_PATH", "matchcore.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		BusDriver:       getEnv("BUS_DRIVER", BusMemory),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		ComputeAPIURL:   getEnv("COMPUTE_API_URL", "http://localhost:9090"),
		ComputeAPIKey:   getEnv("COMPUTE_API_KEY", ""),
		ComputeProvider: getEnv("COMPUTE_PROVIDER", "gcp"),
		ComputeRegion:   getEnv("COMPUTE_REGION", "europe-west1"),
	}

	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.ProvisionTimeout, err = getDuration("PROVISION_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProvisionSweepInterval, err = getDuration("PROVISION_SWEEP_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.MatchmakerInterval, err = getDuration("MATCHMAKER_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = getDuration("OUTBOX_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MatchPools, err = parsePools(getEnv("MATCH_POOLS", "ranked:EU,ranked:NA")); err != nil {
		return nil, err
	}

	if cfg.BusDriver != BusMemory && cfg.BusDriver != BusRedis {
		return nil, fmt.Errorf("BUS_DRIVER must be %q or %q, got %q", BusMemory, BusRedis, cfg.BusDriver)
	}

	logger.Info().
		Str("service", cfg.ServiceName).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("bus_driver", cfg.BusDriver).
		Str("compute_api_url", cfg.ComputeAPIURL).
		Dur("provision_timeout", cfg.ProvisionTimeout).
		Dur("matchmaker_interval", cfg.MatchmakerInterval).
		Int("match_pools", len(cfg.MatchPools)).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

// parsePools reads "ladder:region,ladder:region".
func parsePools(v string) ([]Pool, error) {
	var pools []Pool
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ladder, region, ok := strings.Cut(part, ":")
		if !ok || ladder == "" || region == "" {
			return nil, fmt.Errorf("invalid MATCH_POOLS entry %q", part)
		}
		pools = append(pools, Pool{Ladder: ladder, Region: region})
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("MATCH_POOLS is empty")
	}
	return pools, nil
}

var Module = fx.Provide(Load)
