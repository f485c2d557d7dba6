package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
)

const routeColumns = `id, route_id, vessel_type, fuel_type, year, ghg_intensity, fuel_consumption, distance, total_emissions, is_baseline`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRoute(row scanner) (*models.Route, error) {
	var r models.Route
	if err := row.Scan(&r.ID, &r.RouteID, &r.VesselType, &r.FuelType, &r.Year,
		&r.GHGIntensity, &r.FuelConsumption, &r.Distance, &r.TotalEmissions, &r.IsBaseline); err != nil {
		return nil, err
	}
	return &r, nil
}

// FindByShip returns the route for shipID, or nil.
func (s *Store) FindByShip(ctx context.Context, shipID string) (*models.Route, error) {
	r, err := scanRoute(s.queryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE route_id = ?`, shipID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route %s: %w", shipID, err)
	}
	return r, nil
}

// GetBaseline returns the baseline route, or nil.
func (s *Store) GetBaseline(ctx context.Context) (*models.Route, error) {
	r, err := scanRoute(s.queryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE is_baseline = ? ORDER BY id LIMIT 1`, true))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}
	return r, nil
}

// ListAll returns routes matching filter ordered by id.
func (s *Store) ListAll(ctx context.Context, filter models.RouteFilter) ([]models.Route, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.VesselType != "" {
		where = append(where, "vessel_type = ?")
		args = append(args, filter.VesselType)
	}
	if filter.FuelType != "" {
		where = append(where, "fuel_type = ?")
		args = append(args, filter.FuelType)
	}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}

	q := `SELECT ` + routeColumns + ` FROM routes`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, *r)
	}
	return routes, rows.Err()
}

// SetBaseline marks route id as the only baseline.
func (s *Store) SetBaseline(ctx context.Context, id int64) error {
	return s.RunInTx(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		var exists int
		err := ts.queryRow(ctx, `SELECT 1 FROM routes WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return apperr.NotFound("set baseline", "route %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get route %d: %w", id, err)
		}
		if _, err := ts.exec(ctx, `UPDATE routes SET is_baseline = (id = ?)`, id); err != nil {
			return fmt.Errorf("failed to set baseline: %w", err)
		}
		return nil
	})
}

// UpsertRoute inserts or replaces a route keyed by route id.
func (s *Store) UpsertRoute(ctx context.Context, r *models.Route) error {
	err := s.queryRow(ctx,
		`INSERT INTO routes (route_id, vessel_type, fuel_type, year, ghg_intensity, fuel_consumption, distance, total_emissions, is_baseline)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (route_id) DO UPDATE SET
		   vessel_type = excluded.vessel_type,
		   fuel_type = excluded.fuel_type,
		   year = excluded.year,
		   ghg_intensity = excluded.ghg_intensity,
		   fuel_consumption = excluded.fuel_consumption,
		   distance = excluded.distance,
		   total_emissions = excluded.total_emissions,
		   is_baseline = excluded.is_baseline
		 RETURNING id`,
		r.RouteID, r.VesselType, r.FuelType, r.Year,
		r.GHGIntensity, r.FuelConsumption, r.Distance, r.TotalEmissions, r.IsBaseline,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert route %s: %w", r.RouteID, err)
	}
	return nil
}
