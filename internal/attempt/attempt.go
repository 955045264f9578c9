// Package attempt provides the bounded-retry helper shared by the motion,
// reset, and marker-polling layers.
package attempt

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

type config struct {
	clk     clock.Clock
	delay   time.Duration
	between func(context.Context) error
}

// Option configures a Do call.
type Option func(*config)

// WithDelay sleeps on clk for d between tries. The sleep is unconditional
// once started; cancellation is honored at the next try boundary.
func WithDelay(clk clock.Clock, d time.Duration) Option {
	return func(c *config) {
		c.clk = clk
		c.delay = d
	}
}

// WithBetween runs fn between tries, before any delay. An error from fn
// stops retrying and is returned as is.
func WithBetween(fn func(context.Context) error) Option {
	return func(c *config) {
		c.between = fn
	}
}

// Do runs op up to n times, stopping at the first success. It returns nil on
// success, ctx.Err() if the context is cancelled between tries, and
// otherwise the error from the last try.
func Do(ctx context.Context, n int, op func(context.Context) error, opts ...Option) error {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var last error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = op(ctx); last == nil {
			return nil
		}
		if i == n-1 {
			break
		}
		if cfg.between != nil {
			if err := cfg.between(ctx); err != nil {
				return err
			}
		}
		if cfg.delay > 0 {
			cfg.clk.Sleep(cfg.delay)
		}
	}
	return last
}
