// Package comparison compares route intensities against the baseline route.
package comparison

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/compliance"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

// PercentPlaces is the rounding applied to percent differences.
const PercentPlaces = 6

// Compare returns one result per route other than baseline, in the order
// given. A route is compliant when its intensity does not exceed the
// target intensity.
func Compare(baseline models.Route, routes []models.Route) ([]models.ComparisonResult, error) {
	if baseline.GHGIntensity.IsZero() {
		return nil, apperr.InvalidState("compare", "baseline %s has zero intensity", baseline.RouteID)
	}

	results := make([]models.ComparisonResult, 0, len(routes))
	for _, r := range routes {
		if r.ID == baseline.ID {
			continue
		}
		diff, err := amount.PercentDiff(r.GHGIntensity, baseline.GHGIntensity, PercentPlaces)
		if err != nil {
			return nil, err
		}
		results = append(results, models.ComparisonResult{
			Baseline:        baseline,
			Comparison:      r,
			PercentDiff:     diff,
			Compliant:       r.GHGIntensity.LessThanOrEqual(compliance.TargetIntensity),
			TargetIntensity: compliance.TargetIntensity,
		})
	}
	return results, nil
}

// Service serves route listings, baseline selection and comparisons.
type Service struct {
	store     store.RouteStore
	publisher messaging.Publisher
	log       logrus.FieldLogger
}

// NewService creates a comparison service.
func NewService(s store.RouteStore, pub messaging.Publisher, log logrus.FieldLogger) *Service {
	return &Service{store: s, publisher: pub, log: log.WithField("component", "comparison")}
}

// CompareAll compares every stored route against the baseline.
func (s *Service) CompareAll(ctx context.Context) ([]models.ComparisonResult, error) {
	baseline, err := s.store.GetBaseline(ctx)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, apperr.InvalidState("compare", "no baseline set")
	}
	routes, err := s.store.ListAll(ctx, models.RouteFilter{})
	if err != nil {
		return nil, err
	}
	return Compare(*baseline, routes)
}

// ListRoutes returns routes matching filter. The result is never nil.
func (s *Service) ListRoutes(ctx context.Context, filter models.RouteFilter) ([]models.Route, error) {
	routes, err := s.store.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	if routes == nil {
		routes = []models.Route{}
	}
	return routes, nil
}

// SetBaseline makes route id the only baseline and returns it.
func (s *Service) SetBaseline(ctx context.Context, id int64) (*models.Route, error) {
	if err := s.store.SetBaseline(ctx, id); err != nil {
		return nil, err
	}
	baseline, err := s.store.GetBaseline(ctx)
	if err != nil {
		return nil, err
	}
	if baseline == nil || baseline.ID != id {
		return nil, apperr.Invariant("set baseline", "route %d is not the baseline after update", id)
	}

	s.log.WithFields(logrus.Fields{"id": id, "route_id": baseline.RouteID}).Info("baseline changed")
	err = messaging.Emit(ctx, s.publisher, messaging.EventTypeBaselineChanged, strconv.FormatInt(id, 10),
		messaging.BaselineChangedEvent{ID: id, RouteID: baseline.RouteID})
	if err != nil {
		s.log.WithError(err).WithField("id", id).Warn("failed to publish baseline event")
	}
	return baseline, nil
}
