package messaging

import (
	"context"
	"errors"

	"github.com/terminal-bench/fleetcompliance/pkg/circuit"
)

// Publisher delivers a payload on a subject. The NATS client, the websocket
// hub and the metrics sink all implement it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, subject string, data interface{}) error

func (f PublisherFunc) Publish(ctx context.Context, subject string, data interface{}) error {
	return f(ctx, subject, data)
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, subject string, data interface{}) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, subject, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type breakerPublisher struct {
	next    Publisher
	breaker *circuit.Breaker
}

// WithBreaker guards p with b so that a failing downstream is skipped
// until the breaker half-opens.
func WithBreaker(p Publisher, b *circuit.Breaker) Publisher {
	return &breakerPublisher{next: p, breaker: b}
}

func (p *breakerPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	return p.breaker.Execute(ctx, func() error {
		return p.next.Publish(ctx, subject, data)
	})
}
