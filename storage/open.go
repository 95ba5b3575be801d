package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	DriverJSON     = "json"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Options struct {
	Driver  string
	DataDir string
	DSN     string
	Logger  *slog.Logger
}

// Open builds the backend named by opts.Driver.
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverJSON, "":
		return NewJSONFileBackend(opts.DataDir)
	case DriverBadger:
		return NewBadgerBackend(BadgerConfig{
			Path:       filepath.Join(opts.DataDir, "badger"),
			SyncWrites: true,
			Logger:     opts.Logger,
		})
	case DriverPostgres:
		return OpenGorm(DriverPostgres, opts.DSN)
	case DriverSQLite:
		dsn := opts.DSN
		if dsn == "" {
			if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory %s: %w", opts.DataDir, err)
			}
			dsn = filepath.Join(opts.DataDir, "kb.db")
		}
		return OpenGorm(DriverSQLite, dsn)
	case DriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
