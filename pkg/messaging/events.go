package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types. They double as NATS subjects.
const (
	EventTypeComplianceComputed = "compliance.computed"

	EventTypeSurplusBanked = "banking.banked"
	EventTypeBankedApplied = "banking.applied"

	EventTypePoolCreated = "pool.created"

	EventTypeBaselineChanged = "routes.baseline_changed"
)

// EventSource identifies this service in event metadata.
const EventSource = "fleetcompliance"

// Event is the envelope published for every domain mutation.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
	Metadata    EventMetadata   `json:"metadata"`
}

// EventMetadata contains event metadata
type EventMetadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	Source        string `json:"source"`
}

// ComplianceComputedEvent is published after a balance is computed and stored.
type ComplianceComputedEvent struct {
	ShipID          string `json:"ship_id"`
	Year            int    `json:"year"`
	CB              string `json:"cb_gco2eq"`
	TargetIntensity string `json:"target_intensity"`
	ActualIntensity string `json:"actual_intensity"`
	EnergyInScope   string `json:"energy_in_scope"`
}

// SurplusBankedEvent is published after a bank entry is created.
type SurplusBankedEvent struct {
	EntryID int64  `json:"entry_id"`
	ShipID  string `json:"ship_id"`
	Year    int    `json:"year"`
	Amount  string `json:"amount"`
}

// AllocationEvent is one entry consumed by an apply.
type AllocationEvent struct {
	EntryID int64  `json:"entry_id"`
	Year    int    `json:"year"`
	Amount  string `json:"amount"`
}

// BankedAppliedEvent is published after banked surplus is applied.
type BankedAppliedEvent struct {
	ShipID      string            `json:"ship_id"`
	Year        int               `json:"year"`
	Amount      string            `json:"amount"`
	Allocations []AllocationEvent `json:"allocations"`
}

// PoolMemberEvent is one member of a created pool.
type PoolMemberEvent struct {
	ShipID   string `json:"ship_id"`
	CBBefore string `json:"cb_before"`
	CBAfter  string `json:"cb_after"`
}

// PoolCreatedEvent is published after a pool and its members are stored.
type PoolCreatedEvent struct {
	PoolID      int64             `json:"pool_id"`
	Year        int               `json:"year"`
	TotalBefore string            `json:"total_before"`
	Residual    string            `json:"residual"`
	Members     []PoolMemberEvent `json:"members"`
}

// BaselineChangedEvent is published when another route becomes the baseline.
type BaselineChangedEvent struct {
	ID      int64  `json:"id"`
	RouteID string `json:"route_id"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateID string, data interface{}, metadata EventMetadata) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Timestamp:   time.Now().UTC(),
		Version:     1,
		Data:        dataBytes,
		Metadata:    metadata,
	}, nil
}

// ParseEventData parses event data into the specified type
func ParseEventData[T any](event *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

type correlationKey struct{}

// WithCorrelationID attaches a request correlation id to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Emit wraps data in an Event and publishes it on the subject named by
// eventType.
func Emit(ctx context.Context, p Publisher, eventType, aggregateID string, data interface{}) error {
	event, err := NewEvent(eventType, aggregateID, data, EventMetadata{
		CorrelationID: CorrelationID(ctx),
		Source:        EventSource,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, eventType, event)
}
