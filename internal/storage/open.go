package storage

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"

	logx "agendaengine/pkg/logx"
)

// Drivers lists the accepted Config.Driver values.
var Drivers = []string{"memory", "file", "sqlite"}

// Open initializes the configured store. An empty driver means "memory".
func Open(cfg Config, log logx.Logger, opts ...Option) (Store, error) {
	driver := NormalizeDriver(cfg.Driver)
	log = log.OrNop().Component("storage")

	if driver != "memory" {
		p, err := homedir.Expand(strings.TrimSpace(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("storage.path: %w", err)
		}
		cfg.Path = p
	}

	switch driver {
	case "memory":
		return NewMemory(opts...), nil
	case "file":
		return openFile(cfg, log, opts...)
	case "sqlite":
		return openSQLite(cfg, log, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

// NormalizeDriver lowercases the driver and folds aliases.
func NormalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "", "mem":
		return "memory"
	case "sqlite3":
		return "sqlite"
	}
	return d
}
