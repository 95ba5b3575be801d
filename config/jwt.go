package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const devJWTSecret = "your-secret-key-change-this-in-production"

type JWTConfig struct {
	Secret     []byte
	Expiration time.Duration
}

func LoadJWT() (JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Warn("JWT_SECRET is not set, using the development secret")
		secret = devJWTSecret
	}

	expiration := 24 * time.Hour
	if raw := os.Getenv("JWT_EXPIRATION"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return JWTConfig{}, fmt.Errorf("JWT_EXPIRATION: %w", err)
		}
		if d <= 0 {
			return JWTConfig{}, errors.New("JWT_EXPIRATION must be positive")
		}
		expiration = d
	}

	return JWTConfig{Secret: []byte(secret), Expiration: expiration}, nil
}
