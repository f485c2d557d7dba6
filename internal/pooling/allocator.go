// Package pooling redistributes compliance balances across a pool of ships.
// Members are returned in the order they were submitted, not sorted by
// balance, so callers can match results to their request positionally.
package pooling

import (
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
)

// Allocate computes each member's balance after pooling. Surplus members
// contribute everything and exit at zero; deficits are covered in input
// order while pooled surplus lasts. The returned pool carries the input
// total and the surplus left over. Members keep their input order and have
// no PoolID yet.
func Allocate(year int, members []models.MemberBalance) (*models.Pool, []models.PoolMember, error) {
	total := amount.Zero
	for _, m := range members {
		total = total.Add(m.CBBefore)
	}
	if total.IsNegative() {
		return nil, nil, apperr.InvalidArgument("create pool", "pool total must be non-negative")
	}

	surplus := amount.Zero
	for _, m := range members {
		if !m.CBBefore.IsNegative() {
			surplus = surplus.Add(m.CBBefore)
		}
	}

	out := make([]models.PoolMember, len(members))
	for i, m := range members {
		out[i] = models.PoolMember{ShipID: m.ShipID, CBBefore: m.CBBefore, CBAfter: amount.Zero}
		if !m.CBBefore.IsNegative() {
			continue
		}
		coverage := amount.Min(m.CBBefore.Neg(), surplus)
		out[i].CBAfter = m.CBBefore.Add(coverage)
		surplus = surplus.Sub(coverage)
	}

	pool := &models.Pool{Year: year, TotalBefore: total, Residual: surplus}
	if err := verify(pool, out); err != nil {
		return nil, nil, err
	}
	return pool, out, nil
}

func verify(pool *models.Pool, members []models.PoolMember) error {
	after := amount.Zero
	for _, m := range members {
		if m.CBBefore.IsNegative() {
			if m.CBAfter.LessThan(m.CBBefore) || m.CBAfter.IsPositive() {
				return apperr.Invariant("create pool", "deficit ship %s exits at %s from %s", m.ShipID, m.CBAfter, m.CBBefore)
			}
		} else if m.CBAfter.IsNegative() {
			return apperr.Invariant("create pool", "surplus ship %s exits negative at %s", m.ShipID, m.CBAfter)
		}
		after = after.Add(m.CBAfter)
	}
	if pool.Residual.IsNegative() {
		return apperr.Invariant("create pool", "negative residual %s", pool.Residual)
	}
	if !after.Add(pool.Residual).Equal(pool.TotalBefore) {
		return apperr.Invariant("create pool", "balances after %s plus residual %s do not match total %s",
			after, pool.Residual, pool.TotalBefore)
	}
	return nil
}
