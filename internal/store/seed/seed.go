// Package seed loads route fixtures from YAML into a store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutes []byte

type fixture struct {
	Routes []routeFixture `yaml:"routes"`
}

type routeFixture struct {
	RouteID         string `yaml:"routeId"`
	VesselType      string `yaml:"vesselType"`
	FuelType        string `yaml:"fuelType"`
	Year            int    `yaml:"year"`
	GHGIntensity    string `yaml:"ghgIntensity"`
	FuelConsumption string `yaml:"fuelConsumption"`
	Distance        string `yaml:"distance"`
	TotalEmissions  string `yaml:"totalEmissions"`
	Baseline        bool   `yaml:"baseline"`
}

func (f routeFixture) route() (models.Route, error) {
	r := models.Route{
		RouteID:    f.RouteID,
		VesselType: f.VesselType,
		FuelType:   f.FuelType,
		Year:       f.Year,
		IsBaseline: f.Baseline,
	}
	if r.RouteID == "" {
		return r, errors.New("route without routeId")
	}
	if r.Year <= 0 {
		return r, fmt.Errorf("route %s: year must be positive", r.RouteID)
	}
	var err error
	if r.GHGIntensity, err = amount.Parse(f.GHGIntensity); err != nil {
		return r, fmt.Errorf("route %s: ghgIntensity: %w", r.RouteID, err)
	}
	if r.FuelConsumption, err = amount.Parse(f.FuelConsumption); err != nil {
		return r, fmt.Errorf("route %s: fuelConsumption: %w", r.RouteID, err)
	}
	if r.Distance, err = amount.Parse(f.Distance); err != nil {
		return r, fmt.Errorf("route %s: distance: %w", r.RouteID, err)
	}
	if r.TotalEmissions, err = amount.Parse(f.TotalEmissions); err != nil {
		return r, fmt.Errorf("route %s: totalEmissions: %w", r.RouteID, err)
	}
	return r, nil
}

// Parse decodes a routes fixture.
func Parse(r io.Reader) ([]models.Route, error) {
	var f fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	routes := make([]models.Route, 0, len(f.Routes))
	baselines := 0
	for _, rf := range f.Routes {
		route, err := rf.route()
		if err != nil {
			return nil, err
		}
		if route.IsBaseline {
			baselines++
		}
		routes = append(routes, route)
	}
	if baselines > 1 {
		return nil, fmt.Errorf("fixture marks %d baselines, at most one allowed", baselines)
	}
	return routes, nil
}

// Default returns the embedded reference routes.
func Default() ([]models.Route, error) {
	return Parse(bytes.NewReader(defaultRoutes))
}

// LoadFile parses the fixture at path.
func LoadFile(path string) ([]models.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Apply upserts routes in one transaction and returns how many were written.
// When a route is the baseline, the flag is moved to it.
func Apply(ctx context.Context, s store.Store, routes []models.Route) (int, error) {
	err := s.RunInTx(ctx, func(tx store.Store) error {
		var baselineID int64
		for i := range routes {
			r := routes[i]
			if err := tx.UpsertRoute(ctx, &r); err != nil {
				return err
			}
			routes[i].ID = r.ID
			if r.IsBaseline {
				baselineID = r.ID
			}
		}
		if baselineID != 0 {
			return tx.SetBaseline(ctx, baselineID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(routes), nil
}
