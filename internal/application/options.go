// Package application contains use-case orchestration services.
package application

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultBalanceTTL is how long a cached balance is trusted before a
	// normal refresh queries the portal again.
	DefaultBalanceTTL = 60 * time.Second

	// DefaultTickInterval is the monitoring loop period.
	DefaultTickInterval = time.Second
)

type options struct {
	now        func() time.Time
	balanceTTL time.Duration
	tick       time.Duration
	connLog    *slog.Logger
}

// Option customizes a service.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBalanceTTL overrides DefaultBalanceTTL.
func WithBalanceTTL(ttl time.Duration) Option {
	return func(o *options) { o.balanceTTL = ttl }
}

// WithTickInterval overrides DefaultTickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tick = d }
}

// WithConnectionLog sets the logger that receives the connection history.
func WithConnectionLog(l *slog.Logger) Option {
	return func(o *options) { o.connLog = l }
}

func buildOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		balanceTTL: DefaultBalanceTTL,
		tick:       DefaultTickInterval,
		connLog:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
