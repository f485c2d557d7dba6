package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terminal-bench/fleetcompliance/pkg/circuit"
)

func TestEvents(t *testing.T) {
	t.Run("should round-trip event data", func(t *testing.T) {
		event, err := NewEvent(EventTypeSurplusBanked, "R002", SurplusBankedEvent{
			EntryID: 7, ShipID: "R002", Year: 2024, Amount: "200000",
		}, EventMetadata{Source: EventSource})
		require.NoError(t, err)

		assert.Equal(t, 1, event.Version)
		assert.Equal(t, "R002", event.AggregateID)

		data, err := ParseEventData[SurplusBankedEvent](event)
		require.NoError(t, err)
		assert.Equal(t, int64(7), data.EntryID)
		assert.Equal(t, "200000", data.Amount)
	})

	t.Run("should carry the correlation id from context", func(t *testing.T) {
		var got *Event
		pub := PublisherFunc(func(ctx context.Context, subject string, data interface{}) error {
			assert.Equal(t, EventTypePoolCreated, subject)
			got = data.(*Event)
			return nil
		})
		ctx := WithCorrelationID(context.Background(), "corr-1")

		require.NoError(t, Emit(ctx, pub, EventTypePoolCreated, "1", PoolCreatedEvent{PoolID: 1}))

		require.NotNil(t, got)
		assert.Equal(t, "corr-1", got.Metadata.CorrelationID)
		assert.Equal(t, EventSource, got.Metadata.Source)
	})

	t.Run("should list every subject", func(t *testing.T) {
		assert.Len(t, Subjects(), 5)
	})
}

func TestFanout(t *testing.T) {
	t.Run("should deliver to all and join errors", func(t *testing.T) {
		calls := 0
		ok := PublisherFunc(func(context.Context, string, interface{}) error { calls++; return nil })
		bad := PublisherFunc(func(context.Context, string, interface{}) error { calls++; return errors.New("down") })

		err := Fanout{ok, bad, ok}.Publish(context.Background(), "s", nil)

		assert.Equal(t, 3, calls)
		assert.EqualError(t, err, "down")
	})

	t.Run("should succeed when empty", func(t *testing.T) {
		assert.NoError(t, Fanout{}.Publish(context.Background(), "s", nil))
		assert.NoError(t, NopPublisher{}.Publish(context.Background(), "s", nil))
	})
}

func TestWithBreaker(t *testing.T) {
	t.Run("should stop calling a failing publisher", func(t *testing.T) {
		calls := 0
		bad := PublisherFunc(func(context.Context, string, interface{}) error { calls++; return errors.New("down") })
		p := WithBreaker(bad, circuit.NewBreaker(circuit.Config{Name: "nats", MaxFailures: 2, Timeout: time.Minute}))

		for i := 0; i < 5; i++ {
			_ = p.Publish(context.Background(), "s", nil)
		}

		assert.Equal(t, 2, calls)
		assert.ErrorIs(t, p.Publish(context.Background(), "s", nil), circuit.ErrCircuitOpen)
	})
}

func TestNewClient(t *testing.T) {
	t.Run("should require a url", func(t *testing.T) {
		_, err := NewClient(Config{})
		assert.Error(t, err)
	})
}
