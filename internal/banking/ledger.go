// Package banking implements the banking ledger: depositing a positive
// compliance balance and applying banked surplus against later years.
package banking

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
	"github.com/terminal-bench/fleetcompliance/pkg/lock"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

// DefaultHorizonYears is how many years back banked surplus stays usable.
const DefaultHorizonYears = 3

// Ledger is the banking ledger. Mutations of one ship are serialised by
// the locker and run in a single store transaction.
type Ledger struct {
	store     store.Store
	locker    lock.Locker
	publisher messaging.Publisher
	log       logrus.FieldLogger
	horizon   int
}

// NewLedger creates a ledger. A non-positive horizon selects
// DefaultHorizonYears.
func NewLedger(s store.Store, locker lock.Locker, pub messaging.Publisher, log logrus.FieldLogger, horizonYears int) *Ledger {
	if horizonYears <= 0 {
		horizonYears = DefaultHorizonYears
	}
	return &Ledger{
		store:     s,
		locker:    locker,
		publisher: pub,
		log:       log.WithField("component", "banking"),
		horizon:   horizonYears,
	}
}

// Bank records amount of the (shipID, year) surplus as a new entry. Zero
// is allowed and creates a zero entry.
func (l *Ledger) Bank(ctx context.Context, shipID string, year int, amt decimal.Decimal) (*models.BankEntry, error) {
	if amt.IsNegative() {
		return nil, apperr.InvalidArgument("bank", "amount must not be negative")
	}

	var entry *models.BankEntry
	err := lock.WithLock(ctx, l.locker, l.log, lock.ShipKey(shipID), func() error {
		return l.store.RunInTx(ctx, func(tx store.Store) error {
			c, err := tx.GetCompliance(ctx, shipID, year)
			if err != nil {
				return err
			}
			if c == nil {
				return apperr.NotFound("bank", "no compliance record for ship %s and year %d", shipID, year)
			}
			if !c.CBValue.IsPositive() {
				return apperr.InvalidState("bank", "no positive balance to bank")
			}
			if amt.GreaterThan(c.CBValue) {
				return apperr.InvalidArgument("bank", "amount exceeds available balance")
			}

			entry = &models.BankEntry{
				ShipID:    shipID,
				Year:      year,
				Amount:    amt,
				Applied:   amount.Zero,
				Remaining: amt,
			}
			return tx.InsertBankEntry(ctx, entry)
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"ship_id":  shipID,
		"year":     year,
		"amount":   amount.Format(amt, amount.LogPlaces),
		"entry_id": entry.ID,
	}).Info("surplus banked")
	l.emit(ctx, messaging.EventTypeSurplusBanked, shipID, messaging.SurplusBankedEvent{
		EntryID: entry.ID,
		ShipID:  shipID,
		Year:    year,
		Amount:  amt.String(),
	})
	return entry, nil
}

// Apply consumes amount of banked surplus for (shipID, year), oldest entries
// first. Either the whole amount is allocated or nothing changes. Zero is a
// no-op that touches no entries.
func (l *Ledger) Apply(ctx context.Context, shipID string, year int, amt decimal.Decimal) ([]models.Allocation, error) {
	if amt.IsNegative() {
		return nil, apperr.InvalidArgument("apply", "amount must not be negative")
	}
	if amt.IsZero() {
		return nil, nil
	}

	var allocations []models.Allocation
	err := lock.WithLock(ctx, l.locker, l.log, lock.ShipKey(shipID), func() error {
		return l.store.RunInTx(ctx, func(tx store.Store) error {
			entries, err := tx.ListEligibleBankEntries(ctx, shipID, year)
			if err != nil {
				return err
			}
			entries = WithinHorizon(entries, year, l.horizon)

			allocations, err = Allocate(entries, amt)
			if err != nil {
				return err
			}

			byID := make(map[int64]models.BankEntry, len(entries))
			for _, e := range entries {
				byID[e.ID] = e
			}
			for _, a := range allocations {
				if err := tx.UpdateBankEntryApplied(ctx, a.EntryID, byID[a.EntryID].Applied.Add(a.Amount)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"ship_id": shipID,
		"year":    year,
		"amount":  amount.Format(amt, amount.LogPlaces),
		"entries": len(allocations),
	}).Info("banked surplus applied")

	events := make([]messaging.AllocationEvent, 0, len(allocations))
	for _, a := range allocations {
		events = append(events, messaging.AllocationEvent{EntryID: a.EntryID, Year: a.Year, Amount: a.Amount.String()})
	}
	l.emit(ctx, messaging.EventTypeBankedApplied, shipID, messaging.BankedAppliedEvent{
		ShipID:      shipID,
		Year:        year,
		Amount:      amt.String(),
		Allocations: events,
	})
	return allocations, nil
}

// AdjustedBalance returns the (shipID, year) record together with the
// banked surplus still usable in that year.
func (l *Ledger) AdjustedBalance(ctx context.Context, shipID string, year int) (*models.AdjustedBalance, error) {
	c, err := l.store.GetCompliance(ctx, shipID, year)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("adjusted balance", "no compliance record for ship %s and year %d", shipID, year)
	}
	entries, err := l.store.ListEligibleBankEntries(ctx, shipID, year)
	if err != nil {
		return nil, err
	}

	banked := amount.Zero
	for _, e := range WithinHorizon(entries, year, l.horizon) {
		banked = banked.Add(e.Remaining)
	}
	return &models.AdjustedBalance{
		ShipCompliance: *c,
		BankedAmount:   banked,
		AdjustedCB:     c.CBValue.Add(banked),
	}, nil
}

// Records lists every entry of shipID banked up to year, exhausted ones
// included.
func (l *Ledger) Records(ctx context.Context, shipID string, year int) ([]models.BankEntry, error) {
	entries, err := l.store.ListBankEntries(ctx, shipID, year)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.BankEntry{}
	}
	return entries, nil
}

// HorizonYears returns the configured banking horizon.
func (l *Ledger) HorizonYears() int {
	return l.horizon
}

func (l *Ledger) emit(ctx context.Context, eventType, shipID string, data interface{}) {
	if err := messaging.Emit(ctx, l.publisher, eventType, shipID, data); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"ship_id": shipID,
			"event":   eventType,
		}).Warn("failed to publish banking event")
	}
}
