// Package store declares the persistence collaborators consumed by the
// compliance engine. Implementations live in the memstore and sqlstore
// subpackages.
package store

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/internal/models"
)

// RouteStore reads and maintains voyage records.
type RouteStore interface {
	// FindByShip returns the route whose route id equals shipID, or nil.
	FindByShip(ctx context.Context, shipID string) (*models.Route, error)
	// GetBaseline returns the route marked as baseline, or nil.
	GetBaseline(ctx context.Context) (*models.Route, error)
	// ListAll returns routes matching filter ordered by id.
	ListAll(ctx context.Context, filter models.RouteFilter) ([]models.Route, error)
	// SetBaseline marks route id as the only baseline. Unknown ids fail with apperr.KindNotFound.
	SetBaseline(ctx context.Context, id int64) error
	// UpsertRoute inserts or replaces a route keyed by RouteID and sets route.ID.
	UpsertRoute(ctx context.Context, route *models.Route) error
}

// ComplianceStore persists balances, the banking ledger and pools.
type ComplianceStore interface {
	// UpsertCompliance writes c keyed by (ShipID, Year) and sets c.ID.
	UpsertCompliance(ctx context.Context, c *models.ShipCompliance) error
	// GetCompliance returns the record for (shipID, year), or nil.
	GetCompliance(ctx context.Context, shipID string, year int) (*models.ShipCompliance, error)

	// InsertBankEntry persists a new entry and sets its ID and CreatedAt.
	InsertBankEntry(ctx context.Context, entry *models.BankEntry) error
	// ListEligibleBankEntries returns the ship's entries with Year <= uptoYear
	// and Remaining > 0, ordered by Year ascending then ID ascending. Inside a
	// transaction the returned rows are locked until commit.
	ListEligibleBankEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error)
	// ListBankEntries is ListEligibleBankEntries including exhausted entries.
	ListBankEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error)
	// UpdateBankEntryApplied sets the cumulative applied amount and derives
	// Remaining = Amount - applied. applied must lie in [0, Amount].
	UpdateBankEntryApplied(ctx context.Context, id int64, applied decimal.Decimal) error

	// InsertPool persists a pool and sets its ID.
	InsertPool(ctx context.Context, pool *models.Pool) error
	// InsertPoolMembers persists the members of an already inserted pool.
	InsertPoolMembers(ctx context.Context, members []models.PoolMember) error
	// ListPoolMembers returns a pool's members in insertion order.
	ListPoolMembers(ctx context.Context, poolID int64) ([]models.PoolMember, error)
}

// Store is the complete persistence surface.
type Store interface {
	RouteStore
	ComplianceStore

	// RunInTx runs fn as one atomic unit. fn must use the Store it is given.
	// Calls made on a transactional Store join the running transaction.
	RunInTx(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
