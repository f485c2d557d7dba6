package banking

import (
	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
)

// WithinHorizon keeps entries banked no earlier than year-horizon and no
// later than year. Order is preserved.
func WithinHorizon(entries []models.BankEntry, year, horizon int) []models.BankEntry {
	out := make([]models.BankEntry, 0, len(entries))
	for _, e := range entries {
		if e.Year >= year-horizon && e.Year <= year {
			out = append(out, e)
		}
	}
	return out
}

// Allocate plans a greedy single pass over entries in the given order,
// taking min(remaining, left) from each until amt is covered. Entries the
// pass never reaches get no allocation. It fails with KindInvalidArgument
// when the entries cannot cover amt.
func Allocate(entries []models.BankEntry, amt decimal.Decimal) ([]models.Allocation, error) {
	available := amount.Zero
	for _, e := range entries {
		available = available.Add(e.Remaining)
	}
	if amt.GreaterThan(available) {
		return nil, apperr.InvalidArgument("apply", "insufficient banked surplus")
	}

	var allocations []models.Allocation
	left := amt
	for _, e := range entries {
		if !left.IsPositive() {
			break
		}
		if !e.Remaining.IsPositive() {
			continue
		}
		take := amount.Min(e.Remaining, left)
		allocations = append(allocations, models.Allocation{EntryID: e.ID, Year: e.Year, Amount: take})
		left = left.Sub(take)
	}

	if !left.IsZero() {
		return nil, apperr.Invariant("apply", "allocation left %s unassigned", left)
	}
	return allocations, nil
}
