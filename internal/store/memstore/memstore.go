// Package memstore is an in-memory store.Store. It backs the "memory"
// database driver and the engine's unit tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
)

type complianceKey struct {
	shipID string
	year   int
}

type state struct {
	routes      []models.Route
	compliance  map[complianceKey]models.ShipCompliance
	entries     []models.BankEntry
	pools       []models.Pool
	members     []models.PoolMember
	nextRouteID int64
	nextCompID  int64
	nextEntryID int64
	nextPoolID  int64
}

func newState() *state {
	return &state{compliance: make(map[complianceKey]models.ShipCompliance)}
}

func (st *state) clone() *state {
	c := *st
	c.routes = append([]models.Route(nil), st.routes...)
	c.entries = append([]models.BankEntry(nil), st.entries...)
	c.pools = append([]models.Pool(nil), st.pools...)
	c.members = append([]models.PoolMember(nil), st.members...)
	c.compliance = make(map[complianceKey]models.ShipCompliance, len(st.compliance))
	for k, v := range st.compliance {
		c.compliance[k] = v
	}
	return &c
}

// Store is a mutex-guarded in-memory store. Transactions are serialised and
// roll back to a snapshot when they fail.
type Store struct {
	ops

	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.ops = ops{s: s, write: s.writeExclusive}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) writeExclusive(fn func(*state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.writeLocked(fn)
}

func (s *Store) writeLocked(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) read(fn func(*state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// RunInTx runs fn against a transactional view of the store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	tx := &txStore{ops{s: s, write: s.writeLocked}}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
	}
	return err
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type txStore struct {
	ops
}

func (t *txStore) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Close() error { return nil }

// ops implements every data method. Writes go through write so that the
// top-level store can exclude running transactions while a transactional
// view writes directly.
type ops struct {
	s     *Store
	write func(fn func(*state) error) error
}

func (o ops) FindByShip(ctx context.Context, shipID string) (*models.Route, error) {
	var found *models.Route
	err := o.s.read(func(st *state) error {
		for _, r := range st.routes {
			if r.RouteID == shipID {
				r := r
				found = &r
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (o ops) GetBaseline(ctx context.Context) (*models.Route, error) {
	var found *models.Route
	err := o.s.read(func(st *state) error {
		for _, r := range st.routes {
			if r.IsBaseline {
				r := r
				found = &r
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (o ops) ListAll(ctx context.Context, filter models.RouteFilter) ([]models.Route, error) {
	var routes []models.Route
	err := o.s.read(func(st *state) error {
		for _, r := range st.routes {
			if filter.Matches(r) {
				routes = append(routes, r)
			}
		}
		return nil
	})
	return routes, err
}

func (o ops) SetBaseline(ctx context.Context, id int64) error {
	return o.write(func(st *state) error {
		idx := -1
		for i := range st.routes {
			if st.routes[i].ID == id {
				idx = i
			}
		}
		if idx < 0 {
			return apperr.NotFound("set baseline", "route %d not found", id)
		}
		for i := range st.routes {
			st.routes[i].IsBaseline = i == idx
		}
		return nil
	})
}

func (o ops) UpsertRoute(ctx context.Context, route *models.Route) error {
	return o.write(func(st *state) error {
		for i := range st.routes {
			if st.routes[i].RouteID == route.RouteID {
				route.ID = st.routes[i].ID
				st.routes[i] = *route
				return nil
			}
		}
		st.nextRouteID++
		route.ID = st.nextRouteID
		st.routes = append(st.routes, *route)
		return nil
	})
}

func (o ops) UpsertCompliance(ctx context.Context, c *models.ShipCompliance) error {
	return o.write(func(st *state) error {
		key := complianceKey{shipID: c.ShipID, year: c.Year}
		if existing, ok := st.compliance[key]; ok {
			c.ID = existing.ID
		} else {
			st.nextCompID++
			c.ID = st.nextCompID
		}
		if c.ComputedAt.IsZero() {
			c.ComputedAt = o.s.now()
		}
		st.compliance[key] = *c
		return nil
	})
}

func (o ops) GetCompliance(ctx context.Context, shipID string, year int) (*models.ShipCompliance, error) {
	var found *models.ShipCompliance
	err := o.s.read(func(st *state) error {
		if c, ok := st.compliance[complianceKey{shipID: shipID, year: year}]; ok {
			found = &c
		}
		return nil
	})
	return found, err
}

func (o ops) InsertBankEntry(ctx context.Context, entry *models.BankEntry) error {
	return o.write(func(st *state) error {
		st.nextEntryID++
		entry.ID = st.nextEntryID
		entry.CreatedAt = o.s.now()
		st.entries = append(st.entries, *entry)
		return nil
	})
}

func (o ops) listEntries(shipID string, uptoYear int, eligibleOnly bool) ([]models.BankEntry, error) {
	var entries []models.BankEntry
	err := o.s.read(func(st *state) error {
		for _, e := range st.entries {
			if e.ShipID != shipID || e.Year > uptoYear {
				continue
			}
			if eligibleOnly && !e.Remaining.IsPositive() {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Year != entries[j].Year {
			return entries[i].Year < entries[j].Year
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, err
}

func (o ops) ListEligibleBankEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error) {
	return o.listEntries(shipID, uptoYear, true)
}

func (o ops) ListBankEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error) {
	return o.listEntries(shipID, uptoYear, false)
}

func (o ops) UpdateBankEntryApplied(ctx context.Context, id int64, applied decimal.Decimal) error {
	return o.write(func(st *state) error {
		for i := range st.entries {
			e := &st.entries[i]
			if e.ID != id {
				continue
			}
			if applied.IsNegative() || applied.GreaterThan(e.Amount) {
				return apperr.InvalidArgument("update bank entry", "applied amount %s outside [0, %s]", applied, e.Amount)
			}
			e.Applied = applied
			e.Remaining = e.Amount.Sub(applied)
			return nil
		}
		return apperr.NotFound("update bank entry", "bank entry %d not found", id)
	})
}

func (o ops) InsertPool(ctx context.Context, pool *models.Pool) error {
	return o.write(func(st *state) error {
		st.nextPoolID++
		pool.ID = st.nextPoolID
		if pool.CreatedAt.IsZero() {
			pool.CreatedAt = o.s.now()
		}
		st.pools = append(st.pools, *pool)
		return nil
	})
}

func (o ops) InsertPoolMembers(ctx context.Context, members []models.PoolMember) error {
	return o.write(func(st *state) error {
		for _, m := range members {
			known := false
			for _, p := range st.pools {
				if p.ID == m.PoolID {
					known = true
					break
				}
			}
			if !known {
				return apperr.NotFound("insert pool members", "pool %d not found", m.PoolID)
			}
		}
		st.members = append(st.members, members...)
		return nil
	})
}

func (o ops) ListPoolMembers(ctx context.Context, poolID int64) ([]models.PoolMember, error) {
	var members []models.PoolMember
	err := o.s.read(func(st *state) error {
		for _, m := range st.members {
			if m.PoolID == poolID {
				members = append(members, m)
			}
		}
		return nil
	})
	return members, err
}

// PoolCount returns the number of persisted pools.
func (s *Store) PoolCount() int {
	var n int
	_ = s.read(func(st *state) error {
		n = len(st.pools)
		return nil
	})
	return n
}
