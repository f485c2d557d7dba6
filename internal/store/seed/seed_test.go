package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store/memstore"
)

func TestDefault(t *testing.T) {
	t.Run("should load the five reference routes", func(t *testing.T) {
		routes, err := Default()
		require.NoError(t, err)
		require.Len(t, routes, 5)

		assert.Equal(t, "R001", routes[0].RouteID)
		assert.True(t, routes[0].IsBaseline)
		assert.Equal(t, "R003", routes[2].RouteID)
		assert.Equal(t, "93.5", routes[2].GHGIntensity.String())
		assert.Equal(t, "5100", routes[2].FuelConsumption.String())
		assert.Equal(t, 2025, routes[4].Year)
	})
}

func TestParse(t *testing.T) {
	t.Run("should reject malformed amounts", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`
routes:
  - routeId: X1
    year: 2024
    ghgIntensity: "ninety"
    fuelConsumption: "1"
    distance: "1"
    totalEmissions: "1"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghgIntensity")
	})

	t.Run("should reject two baselines", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`
routes:
  - {routeId: A, year: 2024, ghgIntensity: "1", fuelConsumption: "1", distance: "1", totalEmissions: "1", baseline: true}
  - {routeId: B, year: 2024, ghgIntensity: "1", fuelConsumption: "1", distance: "1", totalEmissions: "1", baseline: true}
`))
		assert.Error(t, err)
	})

	t.Run("should reject a missing year", func(t *testing.T) {
		_, err := Parse(strings.NewReader(`routes: [{routeId: A}]`))
		assert.Error(t, err)
	})
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("should upsert routes and set the baseline", func(t *testing.T) {
		s := memstore.New()
		routes, err := Default()
		require.NoError(t, err)

		n, err := Apply(ctx, s, routes)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		base, err := s.GetBaseline(ctx)
		require.NoError(t, err)
		require.NotNil(t, base)
		assert.Equal(t, "R001", base.RouteID)

		// Re-applying is idempotent.
		_, err = Apply(ctx, s, routes)
		require.NoError(t, err)
		all, err := s.ListAll(ctx, models.RouteFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}
