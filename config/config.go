package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	GinMode            string
	StorageDriver      string
	DataDir            string
	DBDSN              string
	LockTimeout        time.Duration
	LockSweepInterval  time.Duration
	RequestTimeout     time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	CorsOrigins        []string
	AllowRoleSelection bool
	CategorySeedFile   string
	LogLevel           string
	LogFormat          string
	JWT                JWTConfig
}

// Load reads an optional .env file (ENV_PATH overrides its location) and
// then the process environment.
func Load() (*Config, error) {
	envPath := os.Getenv("ENV_PATH")
	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("Skipping .env ...", "path", envPath, "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the environment alone.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "release"),
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", "json")),
		DataDir:            getEnv("DATA_DIR", "data"),
		DBDSN:              os.Getenv("DB_DSN"),
		CorsOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		CategorySeedFile:   os.Getenv("CATEGORY_SEED_FILE"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "json")),
		AllowRoleSelection: getBool("ALLOW_ROLE_SELECTION", false, &errs),
		LockTimeout:        getDuration("LOCK_TIMEOUT", 30*time.Minute, &errs),
		LockSweepInterval:  getDuration("LOCK_SWEEP_INTERVAL", time.Minute, &errs),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 15*time.Second, &errs),
		RateLimitRPS:       getFloat("RATE_LIMIT_RPS", 20, &errs),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 40, &errs),
	}

	jwtCfg, err := LoadJWT()
	if err != nil {
		errs = append(errs, err)
	}
	cfg.JWT = jwtCfg

	if err := validatePort(cfg.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid port: %w", err))
	}
	switch cfg.StorageDriver {
	case "json", "badger", "sqlite", "memory":
	case "postgres":
		if cfg.DBDSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver))
	}
	if cfg.LockTimeout <= 0 {
		errs = append(errs, errors.New("LOCK_TIMEOUT must be positive"))
	}
	if cfg.LockSweepInterval <= 0 {
		errs = append(errs, errors.New("LOCK_SWEEP_INTERVAL must be positive"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func getInt(key string, fallback int, errs *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return errors.New("port must be a number")
	}
	if portNum < 1 || portNum > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}
