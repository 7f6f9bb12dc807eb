package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	logx "jautolock/pkg/logx"

	"github.com/adrg/xdg"
)

// Store is the run-history API used by the daemon.
type Store interface {
	AppendRun(ctx context.Context, r Run) error
	// RecentRuns returns up to n runs, newest first.
	RecentRuns(ctx context.Context, n int) ([]Run, error)
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
		path, err := resolvePath(cfg.Path, "runs.jsonl")
		if err != nil {
			return nil, err
		}
		cfg.Path = path
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		path, err := resolvePath(cfg.Path, "runs.db")
		if err != nil {
			return nil, err
		}
		cfg.Path = path
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func resolvePath(path, def string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return xdg.StateFile(filepath.Join("jautolock", def))
	}
	if strings.HasPrefix(path, "~/") && xdg.Home != "" {
		path = filepath.Join(xdg.Home, path[2:])
	}
	return path, nil
}
