package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
)

// UpsertCompliance writes c keyed by (ShipID, Year).
func (s *Store) UpsertCompliance(ctx context.Context, c *models.ShipCompliance) error {
	if c.ComputedAt.IsZero() {
		c.ComputedAt = time.Now().UTC()
	}
	err := s.queryRow(ctx,
		`INSERT INTO ship_compliance (ship_id, year, cb_gco2eq, target_intensity, actual_intensity, energy_in_scope, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ship_id, year) DO UPDATE SET
		   cb_gco2eq = excluded.cb_gco2eq,
		   target_intensity = excluded.target_intensity,
		   actual_intensity = excluded.actual_intensity,
		   energy_in_scope = excluded.energy_in_scope,
		   computed_at = excluded.computed_at
		 RETURNING id`,
		c.ShipID, c.Year, c.CBValue, c.TargetIntensity, c.ActualIntensity, c.EnergyInScope, c.ComputedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert compliance %s/%d: %w", c.ShipID, c.Year, err)
	}
	return nil
}

// GetCompliance returns the record for (shipID, year), or nil.
func (s *Store) GetCompliance(ctx context.Context, shipID string, year int) (*models.ShipCompliance, error) {
	var c models.ShipCompliance
	err := s.queryRow(ctx,
		`SELECT id, ship_id, year, cb_gco2eq, target_intensity, actual_intensity, energy_in_scope, computed_at
		 FROM ship_compliance WHERE ship_id = ? AND year = ?`,
		shipID, year,
	).Scan(&c.ID, &c.ShipID, &c.Year, &c.CBValue, &c.TargetIntensity, &c.ActualIntensity, &c.EnergyInScope, &c.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compliance %s/%d: %w", shipID, year, err)
	}
	return &c, nil
}

// InsertBankEntry persists a new entry.
func (s *Store) InsertBankEntry(ctx context.Context, e *models.BankEntry) error {
	e.CreatedAt = time.Now().UTC()
	err := s.queryRow(ctx,
		`INSERT INTO bank_entries (ship_id, year, amount_gco2eq, applied_amount, remaining_amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		e.ShipID, e.Year, e.Amount, e.Applied, e.Remaining, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert bank entry for %s: %w", e.ShipID, err)
	}
	return nil
}

// ListEligibleBankEntries returns entries with Year <= uptoYear and
// Remaining > 0 ordered by year then id. Rows are locked inside a
// postgres transaction.
func (s *Store) ListEligibleBankEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error) {
	entries, err := s.listEntries(ctx, shipID, uptoYear)
	if err != nil {
		return nil, err
	}
	eligible := entries[:0]
	for _, e := range entries {
		if e.Remaining.IsPositive() {
			eligible = append(eligible, e)
		}
	}
	return eligible, nil
}

// ListBankEntries returns all entries with Year <= uptoYear ordered by year then id.
func (s *Store) ListBankEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error) {
	return s.listEntries(ctx, shipID, uptoYear)
}

// listEntries filters on remaining in Go because sqlite keeps amounts as text.
func (s *Store) listEntries(ctx context.Context, shipID string, uptoYear int) ([]models.BankEntry, error) {
	rows, err := s.query(ctx,
		`SELECT id, ship_id, year, amount_gco2eq, applied_amount, remaining_amount, created_at
		 FROM bank_entries WHERE ship_id = ? AND year <= ?
		 ORDER BY year ASC, id ASC`+s.lockSuffix(),
		shipID, uptoYear,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank entries for %s: %w", shipID, err)
	}
	defer rows.Close()

	var entries []models.BankEntry
	for rows.Next() {
		var e models.BankEntry
		if err := rows.Scan(&e.ID, &e.ShipID, &e.Year, &e.Amount, &e.Applied, &e.Remaining, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bank entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateBankEntryApplied sets the cumulative applied amount of entry id.
func (s *Store) UpdateBankEntryApplied(ctx context.Context, id int64, applied decimal.Decimal) error {
	return s.RunInTx(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		var amount decimal.Decimal
		err := ts.queryRow(ctx, `SELECT amount_gco2eq FROM bank_entries WHERE id = ?`+ts.lockSuffix(), id).Scan(&amount)
		if err == sql.ErrNoRows {
			return apperr.NotFound("update bank entry", "bank entry %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get bank entry %d: %w", id, err)
		}
		if applied.IsNegative() || applied.GreaterThan(amount) {
			return apperr.InvalidArgument("update bank entry", "applied amount %s outside [0, %s]", applied, amount)
		}
		if _, err := ts.exec(ctx,
			`UPDATE bank_entries SET applied_amount = ?, remaining_amount = ? WHERE id = ?`,
			applied, amount.Sub(applied), id,
		); err != nil {
			return fmt.Errorf("failed to update bank entry %d: %w", id, err)
		}
		return nil
	})
}

// InsertPool persists a pool.
func (s *Store) InsertPool(ctx context.Context, p *models.Pool) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := s.queryRow(ctx,
		`INSERT INTO pools (year, total_before, residual, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		p.Year, p.TotalBefore, p.Residual, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert pool: %w", err)
	}
	return nil
}

// InsertPoolMembers persists the members of an inserted pool.
func (s *Store) InsertPoolMembers(ctx context.Context, members []models.PoolMember) error {
	return s.RunInTx(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		for _, m := range members {
			if _, err := ts.exec(ctx,
				`INSERT INTO pool_members (pool_id, ship_id, cb_before, cb_after) VALUES (?, ?, ?, ?)`,
				m.PoolID, m.ShipID, m.CBBefore, m.CBAfter,
			); err != nil {
				return fmt.Errorf("failed to insert pool member %s: %w", m.ShipID, err)
			}
		}
		return nil
	})
}

// ListPoolMembers returns a pool's members in insertion order.
func (s *Store) ListPoolMembers(ctx context.Context, poolID int64) ([]models.PoolMember, error) {
	rows, err := s.query(ctx,
		`SELECT pool_id, ship_id, cb_before, cb_after FROM pool_members WHERE pool_id = ? ORDER BY id`,
		poolID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool members: %w", err)
	}
	defer rows.Close()

	var members []models.PoolMember
	for rows.Next() {
		var m models.PoolMember
		if err := rows.Scan(&m.PoolID, &m.ShipID, &m.CBBefore, &m.CBAfter); err != nil {
			return nil, fmt.Errorf("failed to scan pool member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
