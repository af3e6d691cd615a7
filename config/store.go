package config

import (
	"log/slog"
	"sync/atomic"
)

// Store publishes configuration snapshots to the analysis pipeline. The
// settings actor may call Update at any time; the pipeline reads one snapshot
// per analysis cycle via Snapshot and never sees a partially updated value.
type Store struct {
	cur    atomic.Pointer[Config]
	logger *slog.Logger
}

// NewStore seeds a store with an initial configuration. The initial config is
// clamped rather than rejected so startup always yields a usable snapshot.
func NewStore(cfg *Config, logger *slog.Logger) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()
	_ = cfg.Validate()
	s := &Store{logger: logger}
	s.cur.Store(cfg)
	return s
}

// Snapshot returns the current configuration. The returned value is shared
// and must be treated as read-only.
func (s *Store) Snapshot() *Config {
	return s.cur.Load()
}

// Update replaces the current snapshot. Invalid configurations are rejected
// and the last valid snapshot stays in effect.
func (s *Store) Update(cfg *Config) error {
	if err := cfg.Check(); err != nil {
		if s.logger != nil {
			s.logger.Warn("config update rejected", "error", err)
		}
		return err
	}
	s.cur.Store(cfg.Clone())
	if s.logger != nil {
		s.logger.Debug("config updated")
	}
	return nil
}
