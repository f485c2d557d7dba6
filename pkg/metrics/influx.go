// Package metrics records domain events as InfluxDB time series.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

// Measurements written by the sink.
const (
	MeasurementBalance = "compliance_balance"
	MeasurementBanked  = "bank_deposit"
	MeasurementApplied = "bank_apply"
	MeasurementPool    = "pool"
)

// PointWriter is the part of the influx blocking write API the sink uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Config selects the InfluxDB server and bucket.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Sink is a messaging.Publisher that writes one point per domain event.
// Events without a time series representation are ignored.
type Sink struct {
	writer PointWriter
	close  func()
}

// NewSink connects to InfluxDB. Writes are blocking so a failed write is
// reported to the publisher.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx url is required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		close:  client.Close,
	}, nil
}

// New wraps an existing writer.
func New(w PointWriter) *Sink {
	return &Sink{writer: w, close: func() {}}
}

// Publish converts data, which must be a *messaging.Event, into a point.
func (s *Sink) Publish(ctx context.Context, subject string, data interface{}) error {
	event, ok := data.(*messaging.Event)
	if !ok {
		return nil
	}
	p, err := Point(event)
	if err != nil || p == nil {
		return err
	}
	return s.writer.WritePoint(ctx, p)
}

// Close releases the client.
func (s *Sink) Close() {
	s.close()
}

// Point maps an event to its point, or nil when the event type is not
// recorded.
func Point(event *messaging.Event) (*write.Point, error) {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	switch event.Type {
	case messaging.EventTypeComplianceComputed:
		e, err := messaging.ParseEventData[messaging.ComplianceComputedEvent](event)
		if err != nil {
			return nil, err
		}
		fields, err := floats(map[string]string{
			"cb":               e.CB,
			"energy_in_scope":  e.EnergyInScope,
			"actual_intensity": e.ActualIntensity,
			"target_intensity": e.TargetIntensity,
		})
		if err != nil {
			return nil, err
		}
		return influxdb2.NewPoint(MeasurementBalance, shipTags(e.ShipID, e.Year), fields, ts), nil

	case messaging.EventTypeSurplusBanked:
		e, err := messaging.ParseEventData[messaging.SurplusBankedEvent](event)
		if err != nil {
			return nil, err
		}
		fields, err := floats(map[string]string{"amount": e.Amount})
		if err != nil {
			return nil, err
		}
		fields["entry_id"] = e.EntryID
		return influxdb2.NewPoint(MeasurementBanked, shipTags(e.ShipID, e.Year), fields, ts), nil

	case messaging.EventTypeBankedApplied:
		e, err := messaging.ParseEventData[messaging.BankedAppliedEvent](event)
		if err != nil {
			return nil, err
		}
		fields, err := floats(map[string]string{"amount": e.Amount})
		if err != nil {
			return nil, err
		}
		fields["entries"] = len(e.Allocations)
		return influxdb2.NewPoint(MeasurementApplied, shipTags(e.ShipID, e.Year), fields, ts), nil

	case messaging.EventTypePoolCreated:
		e, err := messaging.ParseEventData[messaging.PoolCreatedEvent](event)
		if err != nil {
			return nil, err
		}
		fields, err := floats(map[string]string{
			"total_before": e.TotalBefore,
			"residual":     e.Residual,
		})
		if err != nil {
			return nil, err
		}
		fields["members"] = len(e.Members)
		fields["pool_id"] = e.PoolID
		tags := map[string]string{"year": strconv.Itoa(e.Year)}
		return influxdb2.NewPoint(MeasurementPool, tags, fields, ts), nil
	}
	return nil, nil
}

func shipTags(shipID string, year int) map[string]string {
	return map[string]string{"ship_id": shipID, "year": strconv.Itoa(year)}
}

func floats(values map[string]string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		fields[k] = d.InexactFloat64()
	}
	return fields, nil
}
