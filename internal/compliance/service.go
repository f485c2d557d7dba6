package compliance

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

// Service computes balances and persists them.
type Service struct {
	store     store.Store
	publisher messaging.Publisher
	log       logrus.FieldLogger
}

// NewService creates a compliance service.
func NewService(s store.Store, pub messaging.Publisher, log logrus.FieldLogger) *Service {
	return &Service{store: s, publisher: pub, log: log.WithField("component", "compliance")}
}

// ComputeBalance computes the balance of shipID for year from its route and
// upserts it.
func (s *Service) ComputeBalance(ctx context.Context, shipID string, year int) (*models.ShipCompliance, error) {
	route, err := s.store.FindByShip(ctx, shipID)
	if err != nil {
		return nil, err
	}
	record, err := Calculate(shipID, year, route)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertCompliance(ctx, record); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"ship_id": shipID,
		"year":    year,
		"cb":      amount.Format(record.CBValue, amount.LogPlaces),
	}).Info("compliance balance computed")
	s.publishComputed(ctx, record)

	return record, nil
}

func (s *Service) publishComputed(ctx context.Context, c *models.ShipCompliance) {
	event := messaging.ComplianceComputedEvent{
		ShipID:          c.ShipID,
		Year:            c.Year,
		CB:              c.CBValue.String(),
		TargetIntensity: c.TargetIntensity.String(),
		ActualIntensity: c.ActualIntensity.String(),
		EnergyInScope:   c.EnergyInScope.String(),
	}
	if err := messaging.Emit(ctx, s.publisher, messaging.EventTypeComplianceComputed, c.ShipID, event); err != nil {
		s.log.WithError(err).WithField("ship_id", c.ShipID).Warn("failed to publish compliance event")
	}
}
