package storage

import (
	"context"
	"errors"
	"strings"

	logx "crierd/pkg/logx"
)

// Store is the persistence API used by the failure journal handler.
type Store interface {
	AppendFailure(ctx context.Context, f Failure) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Failure, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
