package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()

	t.Run("should upsert by route id and keep the row id", func(t *testing.T) {
		s := New()
		r := &models.Route{RouteID: "R001", VesselType: "Container", Year: 2024, GHGIntensity: d("91.0")}
		require.NoError(t, s.UpsertRoute(ctx, r))
		firstID := r.ID

		r2 := &models.Route{RouteID: "R001", VesselType: "Container", Year: 2024, GHGIntensity: d("90.0")}
		require.NoError(t, s.UpsertRoute(ctx, r2))

		assert.Equal(t, firstID, r2.ID)
		got, err := s.FindByShip(ctx, "R001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.GHGIntensity.Equal(d("90.0")))
	})

	t.Run("should return nil for an unknown ship", func(t *testing.T) {
		s := New()
		got, err := s.FindByShip(ctx, "R404")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should keep exactly one baseline", func(t *testing.T) {
		s := New()
		a := &models.Route{RouteID: "R001", IsBaseline: true}
		b := &models.Route{RouteID: "R002"}
		require.NoError(t, s.UpsertRoute(ctx, a))
		require.NoError(t, s.UpsertRoute(ctx, b))

		require.NoError(t, s.SetBaseline(ctx, b.ID))

		base, err := s.GetBaseline(ctx)
		require.NoError(t, err)
		require.NotNil(t, base)
		assert.Equal(t, "R002", base.RouteID)

		all, err := s.ListAll(ctx, models.RouteFilter{})
		require.NoError(t, err)
		count := 0
		for _, r := range all {
			if r.IsBaseline {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("should reject an unknown baseline id", func(t *testing.T) {
		s := New()
		err := s.SetBaseline(ctx, 42)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("should filter listings", func(t *testing.T) {
		s := New()
		require.NoError(t, s.UpsertRoute(ctx, &models.Route{RouteID: "R001", FuelType: "HFO", Year: 2024}))
		require.NoError(t, s.UpsertRoute(ctx, &models.Route{RouteID: "R002", FuelType: "LNG", Year: 2024}))
		require.NoError(t, s.UpsertRoute(ctx, &models.Route{RouteID: "R004", FuelType: "HFO", Year: 2025}))

		got, err := s.ListAll(ctx, models.RouteFilter{FuelType: "HFO"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "R001", got[0].RouteID)
		assert.Equal(t, "R004", got[1].RouteID)
	})
}

func TestBankEntries(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("should list eligible entries by year then id", func(t *testing.T) {
		s := New(WithClock(func() time.Time { return fixed }))
		for _, e := range []models.BankEntry{
			{ShipID: "R002", Year: 2024, Amount: d("100"), Remaining: d("100")},
			{ShipID: "R002", Year: 2023, Amount: d("50"), Remaining: d("50")},
			{ShipID: "R002", Year: 2023, Amount: d("70"), Remaining: d("0"), Applied: d("70")},
			{ShipID: "R002", Year: 2023, Amount: d("30"), Remaining: d("30")},
			{ShipID: "R002", Year: 2026, Amount: d("10"), Remaining: d("10")},
			{ShipID: "R003", Year: 2023, Amount: d("10"), Remaining: d("10")},
		} {
			e := e
			require.NoError(t, s.InsertBankEntry(ctx, &e))
			assert.Equal(t, fixed, e.CreatedAt)
		}

		eligible, err := s.ListEligibleBankEntries(ctx, "R002", 2025)
		require.NoError(t, err)
		require.Len(t, eligible, 3)
		assert.Equal(t, []int64{2, 4, 1}, []int64{eligible[0].ID, eligible[1].ID, eligible[2].ID})

		all, err := s.ListBankEntries(ctx, "R002", 2025)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("should derive remaining from applied", func(t *testing.T) {
		s := New()
		e := &models.BankEntry{ShipID: "R002", Year: 2024, Amount: d("500"), Remaining: d("500")}
		require.NoError(t, s.InsertBankEntry(ctx, e))

		require.NoError(t, s.UpdateBankEntryApplied(ctx, e.ID, d("200")))

		all, err := s.ListBankEntries(ctx, "R002", 2024)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].Applied.Equal(d("200")))
		assert.True(t, all[0].Remaining.Equal(d("300")))
	})

	t.Run("should reject applied beyond the deposit", func(t *testing.T) {
		s := New()
		e := &models.BankEntry{ShipID: "R002", Year: 2024, Amount: d("500"), Remaining: d("500")}
		require.NoError(t, s.InsertBankEntry(ctx, e))

		err := s.UpdateBankEntryApplied(ctx, e.ID, d("500.01"))
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

		err = s.UpdateBankEntryApplied(ctx, 99, d("1"))
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("should roll back every write when fn fails", func(t *testing.T) {
		s := New()
		boom := errors.New("boom")

		err := s.RunInTx(ctx, func(tx store.Store) error {
			require.NoError(t, tx.InsertPool(ctx, &models.Pool{Year: 2024}))
			require.NoError(t, tx.UpsertCompliance(ctx, &models.ShipCompliance{ShipID: "R001", Year: 2024}))
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, s.PoolCount())
		got, err := s.GetCompliance(ctx, "R001", 2024)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should commit when fn succeeds", func(t *testing.T) {
		s := New()
		var poolID int64

		err := s.RunInTx(ctx, func(tx store.Store) error {
			p := &models.Pool{Year: 2024}
			if err := tx.InsertPool(ctx, p); err != nil {
				return err
			}
			poolID = p.ID
			return tx.InsertPoolMembers(ctx, []models.PoolMember{
				{PoolID: p.ID, ShipID: "R001", CBBefore: d("10"), CBAfter: d("0")},
			})
		})

		require.NoError(t, err)
		members, err := s.ListPoolMembers(ctx, poolID)
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})

	t.Run("should join the outer transaction when nested", func(t *testing.T) {
		s := New()
		boom := errors.New("boom")

		err := s.RunInTx(ctx, func(tx store.Store) error {
			require.NoError(t, tx.RunInTx(ctx, func(inner store.Store) error {
				return inner.InsertPool(ctx, &models.Pool{Year: 2024})
			}))
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, s.PoolCount())
	})

	t.Run("should roll back when the context is cancelled during fn", func(t *testing.T) {
		s := New()
		entry := &models.BankEntry{ShipID: "R1", Year: 2024, Amount: d("100"), Remaining: d("100")}
		require.NoError(t, s.InsertBankEntry(ctx, entry))

		txCtx, cancel := context.WithCancel(ctx)
		err := s.RunInTx(txCtx, func(tx store.Store) error {
			if err := tx.UpdateBankEntryApplied(txCtx, entry.ID, d("60")); err != nil {
				return err
			}
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)

		entries, err := s.ListBankEntries(ctx, "R1", 2024)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Applied.IsZero(), entries[0].Applied.String())
		assert.True(t, entries[0].Remaining.Equal(d("100")))
	})

	t.Run("should reject members of an unknown pool", func(t *testing.T) {
		s := New()
		err := s.InsertPoolMembers(ctx, []models.PoolMember{{PoolID: 7, ShipID: "R001"}})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}
