// Package compliance computes per-ship-year compliance balances.
package compliance

import (
	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
)

var (
	// ReferenceIntensity is the 2020 fleet reference in gCO2e/MJ.
	ReferenceIntensity = decimal.RequireFromString("91.16")
	// TargetIntensity is 2% below the reference: 89.3368 gCO2e/MJ.
	TargetIntensity = ReferenceIntensity.Mul(decimal.RequireFromString("0.98"))
	// EnergyPerTonne converts fuel mass to energy in scope (MJ/t).
	EnergyPerTonne = decimal.NewFromInt(41000)
)

// EnergyInScope returns fuel tonnes converted to MJ.
func EnergyInScope(fuelTonnes decimal.Decimal) decimal.Decimal {
	return fuelTonnes.Mul(EnergyPerTonne)
}

// Balance returns (target - actual) * energy. Positive is a surplus.
func Balance(actualIntensity, energy decimal.Decimal) decimal.Decimal {
	return TargetIntensity.Sub(actualIntensity).Mul(energy)
}

// Calculate derives the compliance record of route for year. It fails with
// KindNotFound when route is nil or belongs to another year.
func Calculate(shipID string, year int, route *models.Route) (*models.ShipCompliance, error) {
	if route == nil || route.Year != year {
		return nil, apperr.NotFound("compute balance", "route not found for ship %s and year %d", shipID, year)
	}
	energy := EnergyInScope(route.FuelConsumption)
	return &models.ShipCompliance{
		ShipID:          shipID,
		Year:            year,
		CBValue:         Balance(route.GHGIntensity, energy),
		TargetIntensity: TargetIntensity,
		ActualIntensity: route.GHGIntensity,
		EnergyInScope:   energy,
	}, nil
}
