package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

type fakeWriter struct {
	mu     sync.Mutex
	points []*write.Point
	err    error
}

func (f *fakeWriter) WritePoint(ctx context.Context, point ...*write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point...)
	return f.err
}

func event(t *testing.T, eventType string, data interface{}) *messaging.Event {
	t.Helper()
	e, err := messaging.NewEvent(eventType, "agg", data, messaging.EventMetadata{})
	require.NoError(t, err)
	return e
}

func line(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

func TestPoint(t *testing.T) {
	t.Run("should map a computed balance", func(t *testing.T) {
		p, err := Point(event(t, messaging.EventTypeComplianceComputed, messaging.ComplianceComputedEvent{
			ShipID: "R002", Year: 2024, CB: "274044000", TargetIntensity: "89.3368",
			ActualIntensity: "88", EnergyInScope: "205000000",
		}))
		require.NoError(t, err)
		require.NotNil(t, p)

		assert.Equal(t, MeasurementBalance, p.Name())
		assert.Contains(t, line(p), "compliance_balance,ship_id=R002,year=2024 ")
		assert.Contains(t, line(p), "cb=")
	})

	t.Run("should map banking and pool events", func(t *testing.T) {
		p, err := Point(event(t, messaging.EventTypeBankedApplied, messaging.BankedAppliedEvent{
			ShipID: "R002", Year: 2025, Amount: "600000",
			Allocations: []messaging.AllocationEvent{{EntryID: 1}, {EntryID: 2}},
		}))
		require.NoError(t, err)
		assert.Equal(t, MeasurementApplied, p.Name())
		assert.Contains(t, line(p), "entries=2i")

		p, err = Point(event(t, messaging.EventTypeSurplusBanked, messaging.SurplusBankedEvent{EntryID: 7, ShipID: "R002", Year: 2024, Amount: "1"}))
		require.NoError(t, err)
		assert.Equal(t, MeasurementBanked, p.Name())
		assert.Contains(t, line(p), "entry_id=7i")

		p, err = Point(event(t, messaging.EventTypePoolCreated, messaging.PoolCreatedEvent{
			PoolID: 3, Year: 2024, TotalBefore: "500000", Residual: "500000",
			Members: []messaging.PoolMemberEvent{{ShipID: "R001"}, {ShipID: "R003"}},
		}))
		require.NoError(t, err)
		assert.Equal(t, MeasurementPool, p.Name())
		assert.Contains(t, line(p), "pool,year=2024 ")
		assert.Contains(t, line(p), "members=2i")
	})

	t.Run("should skip events without a series", func(t *testing.T) {
		p, err := Point(event(t, messaging.EventTypeBaselineChanged, messaging.BaselineChangedEvent{ID: 1}))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("should reject a malformed amount", func(t *testing.T) {
		_, err := Point(event(t, messaging.EventTypeSurplusBanked, messaging.SurplusBankedEvent{Amount: "lots"}))
		assert.Error(t, err)
	})
}

func TestSink(t *testing.T) {
	ctx := context.Background()

	t.Run("should write recorded events only", func(t *testing.T) {
		w := &fakeWriter{}
		sink := New(w)

		require.NoError(t, sink.Publish(ctx, "x", "not an event"))
		require.NoError(t, sink.Publish(ctx, messaging.EventTypeBaselineChanged,
			event(t, messaging.EventTypeBaselineChanged, messaging.BaselineChangedEvent{ID: 1})))
		require.NoError(t, sink.Publish(ctx, messaging.EventTypeSurplusBanked,
			event(t, messaging.EventTypeSurplusBanked, messaging.SurplusBankedEvent{ShipID: "R002", Year: 2024, Amount: "5"})))

		assert.Len(t, w.points, 1)
	})

	t.Run("should surface write failures", func(t *testing.T) {
		sink := New(&fakeWriter{err: errors.New("influx down")})
		err := sink.Publish(ctx, messaging.EventTypeSurplusBanked,
			event(t, messaging.EventTypeSurplusBanked, messaging.SurplusBankedEvent{ShipID: "R002", Year: 2024, Amount: "5"}))
		assert.EqualError(t, err, "influx down")
	})

	t.Run("should post line protocol to the server", func(t *testing.T) {
		var (
			mu    sync.Mutex
			path  string
			body  string
			query string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			path, body, query = r.URL.Path, string(b), r.URL.RawQuery
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		sink, err := NewSink(Config{URL: srv.URL, Token: "token", Org: "fleet", Bucket: "compliance"})
		require.NoError(t, err)
		defer sink.Close()

		err = sink.Publish(ctx, messaging.EventTypeSurplusBanked,
			event(t, messaging.EventTypeSurplusBanked, messaging.SurplusBankedEvent{EntryID: 1, ShipID: "R002", Year: 2024, Amount: "5"}))
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "/api/v2/write", path)
		assert.Contains(t, query, "bucket=compliance")
		assert.Contains(t, body, "bank_deposit,ship_id=R002,year=2024")
	})

	t.Run("should require a url", func(t *testing.T) {
		_, err := NewSink(Config{})
		assert.Error(t, err)
	})
}
