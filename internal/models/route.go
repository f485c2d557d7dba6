package models

import "github.com/shopspring/decimal"

// Route is one voyage record. RouteID doubles as the ship identifier for
// balance computation.
type Route struct {
	ID              int64           `json:"id"`
	RouteID         string          `json:"routeId"`
	VesselType      string          `json:"vesselType"`
	FuelType        string          `json:"fuelType"`
	Year            int             `json:"year"`
	GHGIntensity    decimal.Decimal `json:"ghgIntensity"`       // gCO2e/MJ
	FuelConsumption decimal.Decimal `json:"fuelConsumption"` // tonnes
	Distance        decimal.Decimal `json:"distance"`                // km
	TotalEmissions  decimal.Decimal `json:"totalEmissions"`   // tonnes
	IsBaseline      bool            `json:"isBaseline"`
}

// RouteFilter narrows a route listing. Zero values match everything.
type RouteFilter struct {
	VesselType string
	FuelType   string
	Year       int
}

// Matches reports whether r passes the filter.
func (f RouteFilter) Matches(r Route) bool {
	if f.VesselType != "" && f.VesselType != r.VesselType {
		return false
	}
	if f.FuelType != "" && f.FuelType != r.FuelType {
		return false
	}
	if f.Year != 0 && f.Year != r.Year {
		return false
	}
	return true
}

// ComparisonResult compares one route against the baseline. Not persisted.
type ComparisonResult struct {
	Baseline        Route           `json:"baseline"`
	Comparison      Route           `json:"comparison"`
	PercentDiff     decimal.Decimal `json:"percentDiff"`
	Compliant       bool            `json:"compliant"`
	TargetIntensity decimal.Decimal `json:"targetIntensity"`
}
