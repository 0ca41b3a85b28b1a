package loader

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/dialect"
)

// Store holds the current compiled catalog snapshot for an explores
// directory. Reload builds a complete new snapshot and swaps it atomically;
// readers hold a *Snapshot and are never affected by later reloads.
type Store struct {
	dir     string
	dialect *dialect.Dialect
	logger  *slog.Logger

	snap atomic.Pointer[Snapshot]
}

// Snapshot is one immutable set of compiled catalogs, keyed by explore name.
type Snapshot struct {
	catalogs map[string]*catalog.Catalog
	order    []string
}

// Catalog returns the compiled catalog for an explore.
func (s *Snapshot) Catalog(explore string) (*catalog.Catalog, error) {
	c, ok := s.catalogs[explore]
	if !ok {
		return nil, fmt.Errorf("unknown explore %q", explore)
	}
	return c, nil
}

// Explores lists explore names in load order.
func (s *Snapshot) Explores() []string { return s.order }

// NewStore creates a store for a directory and dialect. A nil logger logs
// nowhere. Call Reload before the first Snapshot.
func NewStore(dir string, d *dialect.Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, dialect: d, logger: logger}
}

// Reload loads every explore definition and compiles a fresh snapshot. On
// failure the previous snapshot stays active.
func (s *Store) Reload() error {
	explores, err := LoadDir(s.dir)
	if err != nil {
		return err
	}

	snap := &Snapshot{catalogs: make(map[string]*catalog.Catalog, len(explores))}
	for _, ex := range explores {
		c, err := catalog.Build(ex, s.dialect)
		if err != nil {
			return fmt.Errorf("compile explore %s: %w", ex.Name, err)
		}
		snap.catalogs[ex.Name] = c
		snap.order = append(snap.order, ex.Name)
	}

	s.snap.Store(snap)
	s.logger.Info("catalog snapshot loaded",
		slog.Int("explores", len(snap.order)), slog.String("dialect", s.dialect.Name))
	return nil
}

// Snapshot returns the current snapshot, or nil before the first Reload.
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }
