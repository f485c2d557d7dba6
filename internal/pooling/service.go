package pooling

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store"
	"github.com/terminal-bench/fleetcompliance/pkg/amount"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

// Service creates and reads pools.
type Service struct {
	store     store.Store
	publisher messaging.Publisher
	log       logrus.FieldLogger
}

// NewService creates a pooling service.
func NewService(s store.Store, pub messaging.Publisher, log logrus.FieldLogger) *Service {
	return &Service{store: s, publisher: pub, log: log.WithField("component", "pooling")}
}

// CreatePool allocates members and persists the pool with its members in
// one transaction. Nothing is written when allocation fails.
func (s *Service) CreatePool(ctx context.Context, year int, members []models.MemberBalance) (*models.Pool, []models.PoolMember, error) {
	pool, out, err := Allocate(year, members)
	if err != nil {
		return nil, nil, err
	}

	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		if err := tx.InsertPool(ctx, pool); err != nil {
			return err
		}
		for i := range out {
			out[i].PoolID = pool.ID
		}
		return tx.InsertPoolMembers(ctx, out)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"pool_id":  pool.ID,
		"year":     year,
		"members":  len(out),
		"total":    amount.Format(pool.TotalBefore, amount.LogPlaces),
		"residual": amount.Format(pool.Residual, amount.LogPlaces),
	}).Info("pool created")

	event := messaging.PoolCreatedEvent{
		PoolID:      pool.ID,
		Year:        year,
		TotalBefore: pool.TotalBefore.String(),
		Residual:    pool.Residual.String(),
		Members:     make([]messaging.PoolMemberEvent, 0, len(out)),
	}
	for _, m := range out {
		event.Members = append(event.Members, messaging.PoolMemberEvent{
			ShipID:   m.ShipID,
			CBBefore: m.CBBefore.String(),
			CBAfter:  m.CBAfter.String(),
		})
	}
	if err := messaging.Emit(ctx, s.publisher, messaging.EventTypePoolCreated, strconv.FormatInt(pool.ID, 10), event); err != nil {
		s.log.WithError(err).WithField("pool_id", pool.ID).Warn("failed to publish pool event")
	}
	return pool, out, nil
}

// Members returns the members of poolID. A pool without members is
// reported as not found.
func (s *Service) Members(ctx context.Context, poolID int64) ([]models.PoolMember, error) {
	members, err := s.store.ListPoolMembers(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperr.NotFound("pool members", "pool %d not found", poolID)
	}
	return members, nil
}
