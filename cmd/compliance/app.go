package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/api"
	"github.com/terminal-bench/fleetcompliance/internal/banking"
	"github.com/terminal-bench/fleetcompliance/internal/comparison"
	"github.com/terminal-bench/fleetcompliance/internal/compliance"
	"github.com/terminal-bench/fleetcompliance/internal/config"
	"github.com/terminal-bench/fleetcompliance/internal/pooling"
	"github.com/terminal-bench/fleetcompliance/internal/store"
	"github.com/terminal-bench/fleetcompliance/internal/store/memstore"
	"github.com/terminal-bench/fleetcompliance/internal/store/sqlstore"
	"github.com/terminal-bench/fleetcompliance/pkg/circuit"
	"github.com/terminal-bench/fleetcompliance/pkg/lock"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
	"github.com/terminal-bench/fleetcompliance/pkg/metrics"
	"github.com/terminal-bench/fleetcompliance/pkg/ratelimit"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const dialTimeout = 5 * time.Second

// app holds the wired dependencies of one process.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	store     store.Store
	locker    lock.Locker
	publisher messaging.Publisher
	hub       *api.Hub
	breakers  *circuit.BreakerGroup
	limiter   ratelimit.Limiter

	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the configured store. migrate creates the SQL schema.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (store.Store, error) {
	if cfg.DatabaseDriver == "memory" {
		return memstore.New(), nil
	}
	s, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (a *app) openLocker(ctx context.Context) error {
	switch a.cfg.LockBackend {
	case "redis":
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis.url: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.onClose(client.Close)
		a.locker = lock.NewRedis(client, a.cfg.LockTTL)

	case "etcd":
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   a.cfg.EtcdEndpoints,
			DialTimeout: dialTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to etcd: %w", err)
		}
		a.onClose(client.Close)
		locker, err := lock.NewEtcd(client, a.cfg.LockTTL)
		if err != nil {
			return err
		}
		a.onClose(locker.Close)
		a.locker = locker

	default:
		a.locker = lock.NewLocal()
	}
	a.log.WithField("backend", a.cfg.LockBackend).Info("ship lock ready")
	return nil
}

// openLimiter shares request limits through redis when configured. The local
// backend leaves limiter nil so the API builds its own window.
func (a *app) openLimiter(ctx context.Context) error {
	if a.cfg.RateLimitBackend != "redis" || a.cfg.RateLimitRequests == 0 {
		return nil
	}
	opts, err := redisv9.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}
	client := redisv9.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.onClose(client.Close)
	a.limiter = ratelimit.NewRedis(client, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
	a.log.WithField("requests", a.cfg.RateLimitRequests).Info("rate limits shared through redis")
	return nil
}

// openPublishers fans domain events out to the websocket hub and, when
// configured, NATS and InfluxDB. Remote publishers sit behind breakers.
func (a *app) openPublishers() error {
	a.breakers = circuit.NewBreakerGroup(circuit.Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 1,
		OnStateChange: func(name string, from, to circuit.State) {
			a.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	fanout := messaging.Fanout{}
	if a.hub != nil {
		fanout = append(fanout, a.hub)
	}

	if a.cfg.NATSURL != "" {
		client, err := messaging.NewClient(messaging.Config{
			URL:    a.cfg.NATSURL,
			Name:   "fleetcompliance",
			Stream: a.cfg.NATSStream,
		})
		if err != nil {
			return err
		}
		a.onClose(client.Close)
		if err := client.EnsureStream(); err != nil {
			return err
		}
		fanout = append(fanout, messaging.WithBreaker(client, a.breakers.Get("nats")))
		a.log.WithField("url", a.cfg.NATSURL).Info("publishing events to nats")
	}

	if a.cfg.InfluxURL != "" {
		sink, err := metrics.NewSink(metrics.Config{
			URL:    a.cfg.InfluxURL,
			Token:  a.cfg.InfluxToken,
			Org:    a.cfg.InfluxOrg,
			Bucket: a.cfg.InfluxBucket,
		})
		if err != nil {
			return err
		}
		a.onClose(func() error { sink.Close(); return nil })
		fanout = append(fanout, messaging.WithBreaker(sink, a.breakers.Get("influx")))
		a.log.WithField("url", a.cfg.InfluxURL).Info("writing balances to influxdb")
	}

	a.publisher = fanout
	return nil
}

// newApp wires store, lock, limiter and publishers. hub may be nil.
func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, hub *api.Hub, migrate bool) (*app, error) {
	a := &app{cfg: cfg, log: log, hub: hub}

	s, err := openStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.onClose(s.Close)

	if err := a.openLocker(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openLimiter(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPublishers(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) services() api.Services {
	return api.Services{
		Compliance: compliance.NewService(a.store, a.publisher, a.log),
		Ledger:     banking.NewLedger(a.store, a.locker, a.publisher, a.log, a.cfg.BankingHorizonYears),
		Pools:      pooling.NewService(a.store, a.publisher, a.log),
		Routes:     comparison.NewService(a.store, a.publisher, a.log),
	}
}
