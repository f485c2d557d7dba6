package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store/memstore"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging/messagingtest"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestConstants(t *testing.T) {
	t.Run("should derive the target from the reference", func(t *testing.T) {
		assert.True(t, TargetIntensity.Equal(d("89.3368")), TargetIntensity.String())
	})
}

func TestCalculate(t *testing.T) {
	t.Run("should compute a surplus", func(t *testing.T) {
		c, err := Calculate("R002", 2024, &models.Route{Year: 2024, GHGIntensity: d("88.0"), FuelConsumption: d("5000")})
		require.NoError(t, err)

		assert.True(t, c.EnergyInScope.Equal(d("205000000")))
		assert.True(t, c.CBValue.Equal(d("274044000")), c.CBValue.String())
		assert.True(t, c.CBValue.IsPositive())
	})

	t.Run("should compute a deficit", func(t *testing.T) {
		c, err := Calculate("R003", 2024, &models.Route{Year: 2024, GHGIntensity: d("93.5"), FuelConsumption: d("5100")})
		require.NoError(t, err)

		assert.True(t, c.EnergyInScope.Equal(d("209100000")))
		assert.True(t, c.CBValue.Equal(d("-870525120")), c.CBValue.String())
	})

	t.Run("should hold the balance identity", func(t *testing.T) {
		c, err := Calculate("R004", 2025, &models.Route{Year: 2025, GHGIntensity: d("89.2"), FuelConsumption: d("4900")})
		require.NoError(t, err)

		want := c.TargetIntensity.Sub(c.ActualIntensity).Mul(c.EnergyInScope)
		assert.True(t, c.CBValue.Equal(want))
	})

	t.Run("should fail for a missing route or another year", func(t *testing.T) {
		_, err := Calculate("R404", 2024, nil)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		_, err = Calculate("R001", 2025, &models.Route{Year: 2024})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.Contains(t, err.Error(), "R001")
	})
}

func TestComputeBalance(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *memstore.Store, *messagingtest.Recorder) {
		s := memstore.New()
		require.NoError(t, s.UpsertRoute(ctx, &models.Route{RouteID: "R002", Year: 2024, GHGIntensity: d("88.0"), FuelConsumption: d("5000")}))
		rec := &messagingtest.Recorder{}
		logger, _ := test.NewNullLogger()
		return NewService(s, rec, logger), s, rec
	}

	t.Run("should upsert and publish the record", func(t *testing.T) {
		svc, s, rec := setup(t)

		c, err := svc.ComputeBalance(ctx, "R002", 2024)
		require.NoError(t, err)

		stored, err := s.GetCompliance(ctx, "R002", 2024)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.CBValue.Equal(c.CBValue))
		assert.Equal(t, []string{messaging.EventTypeComplianceComputed}, rec.Types())
	})

	t.Run("should overwrite on recompute", func(t *testing.T) {
		svc, s, _ := setup(t)

		first, err := svc.ComputeBalance(ctx, "R002", 2024)
		require.NoError(t, err)
		require.NoError(t, s.UpsertRoute(ctx, &models.Route{RouteID: "R002", Year: 2024, GHGIntensity: d("90.0"), FuelConsumption: d("5000")}))
		second, err := svc.ComputeBalance(ctx, "R002", 2024)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.CBValue.IsNegative())
	})

	t.Run("should fail without writing for a year mismatch", func(t *testing.T) {
		svc, s, rec := setup(t)

		_, err := svc.ComputeBalance(ctx, "R002", 2025)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		stored, err := s.GetCompliance(ctx, "R002", 2025)
		require.NoError(t, err)
		assert.Nil(t, stored)
		assert.Empty(t, rec.Types())
	})

	t.Run("should not fail when publishing fails", func(t *testing.T) {
		svc, _, rec := setup(t)
		rec.Err = errors.New("bus down")

		_, err := svc.ComputeBalance(ctx, "R002", 2024)
		assert.NoError(t, err)
	})
}
