package config

import (
	"fmt"

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/backend/boltstore"
	"github.com/cuemby/storebroker/pkg/backend/memory"
	"github.com/cuemby/storebroker/pkg/backend/sqlitestore"
)

// OpenBackend constructs the backend.Backend named by cfg.Backend.Kind.
// Clones always use the in-memory backend regardless of cfg (spec.md
// §4.3 "Clones always use the in-memory backend"); this is enforced here
// rather than left to the caller.
func OpenBackend(cfg StoreConfig) (backend.Backend, error) {
	if cfg.Role == "clone" {
		return memory.New(), nil
	}
	switch cfg.Backend.Kind {
	case "", BackendMemory:
		return memory.New(), nil
	case BackendSQLite:
		if cfg.Backend.Path == "" {
			return nil, fmt.Errorf("config: sqlite backend requires spec.backend.path")
		}
		return sqlitestore.Open(cfg.Backend.Path)
	case BackendBolt:
		if cfg.Backend.Path == "" {
			return nil, fmt.Errorf("config: bolt backend requires spec.backend.path")
		}
		return boltstore.Open(cfg.Backend.Path)
	default:
		return nil, fmt.Errorf("config: unknown backend kind %q", cfg.Backend.Kind)
	}
}
