// Package timeouts centralizes the context deadlines handlers use for
// database and other I/O work.
//
// Pick by operation shape:
//   - Ping: connectivity checks
//   - Short: single-document reads and lookups
//   - Medium: list queries and routine writes
//   - Long: multi-collection writes and cleanup work
//
// Values start at defaults and may be overridden at startup via Configure
// or ConfigureFromEnv.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// Config holds the four timeout tiers. Zero values mean "keep current".
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

var (
	mu  sync.RWMutex
	cur = Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
	}
)

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(cur)
}

// Ping returns the deadline for connectivity checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short returns the deadline for single-document reads, like loading the
// session user or looking up an account by email.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium returns the deadline for list queries and routine writes, like
// the post feed or saving a verification code.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long returns the deadline for multi-collection work, like account
// creation or deletes with cleanup.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Configure overrides timeout tiers at startup. Zero fields keep their
// current value.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		cur.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		cur.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		cur.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		cur.Long = cfg.Long
	}
}

// Reset restores the defaults. Tests use this to undo Configure.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
	}
}

// ConfigureFromEnv applies TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM,
// and TIMEOUT_LONG from the environment (Go duration syntax, e.g. "500ms",
// "10s"). Unset or unparsable values are skipped. Returns how many were
// applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()

	applied := 0
	for _, tier := range []struct {
		env string
		dst *time.Duration
	}{
		{"TIMEOUT_PING", &cur.Ping},
		{"TIMEOUT_SHORT", &cur.Short},
		{"TIMEOUT_MEDIUM", &cur.Medium},
		{"TIMEOUT_LONG", &cur.Long},
	} {
		v := os.Getenv(tier.env)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*tier.dst = d
			applied++
		}
	}
	return applied
}

// Current returns a snapshot of the active configuration, for startup
// logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout wraps context.WithTimeout and logs a warning from the cancel
// function when the deadline was exceeded, tagged with the operation name.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
