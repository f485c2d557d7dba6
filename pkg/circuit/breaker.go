// Package circuit provides a circuit breaker for calls to flaky downstreams
// such as the event bus and the metrics sink.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents circuit breaker state
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration
type Config struct {
	Name        string
	MaxFailures int
	Timeout     time.Duration
	// HalfOpenMax is both the number of trial calls admitted while half-open
	// and the number of successes needed to close again.
	HalfOpenMax   int
	OnStateChange func(name string, from, to State)
}

// Breaker implements the circuit breaker pattern. All state is guarded by mu;
// the state change callback runs after mu is released.
type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCount int
	openedAt      time.Time
}

// NewBreaker creates a new circuit breaker
func NewBreaker(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Execute runs fn with circuit breaker protection. A cancelled context is
// returned without calling fn and without counting as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.allowRequest(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

type transition struct {
	from, to State
}

func (b *Breaker) notify(t *transition) {
	if t != nil && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, t.from, t.to)
	}
}

func (b *Breaker) allowRequest() error {
	b.mu.Lock()
	var t *transition
	defer func() { b.notify(t) }()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.Timeout {
			return ErrCircuitOpen
		}
		t = b.transitionLocked(StateHalfOpen)
		b.halfOpenCount = 1
		return nil
	case StateHalfOpen:
		if b.halfOpenCount >= b.cfg.HalfOpenMax {
			return ErrTooManyRequests
		}
		b.halfOpenCount++
		return nil
	}
	return errors.New("unknown state")
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	var t *transition
	defer func() { b.notify(t) }()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			t = b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if !success {
			t = b.transitionLocked(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.HalfOpenMax {
			t = b.transitionLocked(StateClosed)
		}
	}
}

func (b *Breaker) transitionLocked(to State) *transition {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.failures = 0
	b.successes = 0
	b.halfOpenCount = 0
	if to == StateOpen {
		b.openedAt = time.Now()
	}
	return &transition{from: from, to: to}
}

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns current failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset resets the circuit breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	t := b.transitionLocked(StateClosed)
	b.failures = 0
	b.mu.Unlock()
	b.notify(t)
}

// ForceOpen forces the circuit breaker to open state
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	t := b.transitionLocked(StateOpen)
	b.openedAt = time.Now()
	b.mu.Unlock()
	b.notify(t)
}

// BreakerGroup manages one breaker per downstream name.
type BreakerGroup struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   Config
}

// NewBreakerGroup creates a new breaker group
func NewBreakerGroup(defaultConfig Config) *BreakerGroup {
	return &BreakerGroup{
		breakers: make(map[string]*Breaker),
		config:   defaultConfig,
	}
}

// Get returns or creates a circuit breaker for the given name
func (g *BreakerGroup) Get(name string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[name]; ok {
		return b
	}
	cfg := g.config
	cfg.Name = name
	b := NewBreaker(cfg)
	g.breakers[name] = b
	return b
}

// Execute executes with the named circuit breaker
func (g *BreakerGroup) Execute(ctx context.Context, name string, fn func() error) error {
	return g.Get(name).Execute(ctx, fn)
}

// States returns all breaker states
func (g *BreakerGroup) States() map[string]State {
	g.mu.Lock()
	breakers := make(map[string]*Breaker, len(g.breakers))
	for name, b := range g.breakers {
		breakers[name] = b
	}
	g.mu.Unlock()

	states := make(map[string]State, len(breakers))
	for name, b := range breakers {
		states[name] = b.State()
	}
	return states
}
