// Package config maps viper settings onto the service configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// FLEETCOMPLIANCE_DATABASE_URL for database.url.
const EnvPrefix = "FLEETCOMPLIANCE"

// Config holds application configuration
type Config struct {
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	NATSURL    string
	NATSStream string

	RedisURL      string
	EtcdEndpoints []string

	LockBackend string
	LockTTL     time.Duration

	JWTSecret string

	RateLimitBackend  string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	BankingHorizonYears int

	LogLevel  string
	LogFormat string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":3001")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "fleetcompliance.sqlite")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.stream", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("ratelimit.backend", "local")
	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")
	v.SetDefault("banking.horizon_years", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv enables FLEETCOMPLIANCE_* overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads a validated Config from v. Defaults are applied first.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		HTTPAddr:            v.GetString("http.addr"),
		DatabaseDriver:      strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:         v.GetString("database.url"),
		NATSURL:             v.GetString("nats.url"),
		NATSStream:          v.GetString("nats.stream"),
		RedisURL:            v.GetString("redis.url"),
		EtcdEndpoints:       splitList(v.GetStringSlice("etcd.endpoints")),
		LockBackend:         strings.ToLower(v.GetString("lock.backend")),
		LockTTL:             v.GetDuration("lock.ttl"),
		JWTSecret:           v.GetString("auth.jwt_secret"),
		RateLimitBackend:    strings.ToLower(v.GetString("ratelimit.backend")),
		RateLimitRequests:   v.GetInt("ratelimit.requests"),
		RateLimitWindow:     v.GetDuration("ratelimit.window"),
		InfluxURL:           v.GetString("influx.url"),
		InfluxToken:         v.GetString("influx.token"),
		InfluxOrg:           v.GetString("influx.org"),
		InfluxBucket:        v.GetString("influx.bucket"),
		BankingHorizonYears: v.GetInt("banking.horizon_years"),
		LogLevel:            v.GetString("log.level"),
		LogFormat:           v.GetString("log.format"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both list values and a single comma-separated string,
// which is how environment variables arrive.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("database.url is required for driver %s", c.DatabaseDriver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres, sqlite or memory", c.DatabaseDriver))
	}

	switch c.LockBackend {
	case "local":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis.url is required for lock.backend redis"))
		}
	case "etcd":
		if len(c.EtcdEndpoints) == 0 {
			errs = append(errs, errors.New("etcd.endpoints is required for lock.backend etcd"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.backend %q must be local, redis or etcd", c.LockBackend))
	}

	if c.BankingHorizonYears <= 0 {
		errs = append(errs, errors.New("banking.horizon_years must be positive"))
	}
	switch c.RateLimitBackend {
	case "local":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis.url is required for ratelimit.backend redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("ratelimit.backend %q must be local or redis", c.RateLimitBackend))
	}
	if c.RateLimitRequests < 0 || c.RateLimitWindow < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	if c.InfluxURL != "" && (c.InfluxOrg == "" || c.InfluxBucket == "") {
		errs = append(errs, errors.New("influx.org and influx.bucket are required with influx.url"))
	}
	return errors.Join(errs...)
}
