package attempt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

var errBoom = errors.New("boom")

func TestDoStopsAtFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 3)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, func(context.Context) error {
		calls++
		return errBoom
	})
	test.That(t, err, test.ShouldBeError, errBoom)
	test.That(t, calls, test.ShouldEqual, 5)
}

func TestDoRunsBetweenHook(t *testing.T) {
	calls, hooks := 0, 0
	err := Do(context.Background(), 5, func(context.Context) error {
		calls++
		return errBoom
	}, WithBetween(func(context.Context) error {
		hooks++
		return nil
	}))
	test.That(t, err, test.ShouldBeError, errBoom)
	test.That(t, calls, test.ShouldEqual, 5)
	// The hook runs between tries, never after the last one.
	test.That(t, hooks, test.ShouldEqual, 4)
}

func TestDoBetweenHookErrorAborts(t *testing.T) {
	errHook := errors.New("hook failed")
	calls := 0
	err := Do(context.Background(), 5, func(context.Context) error {
		calls++
		return errBoom
	}, WithBetween(func(context.Context) error {
		return errHook
	}))
	test.That(t, err, test.ShouldBeError, errHook)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, func(context.Context) error {
		calls++
		cancel()
		return errBoom
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestDoDelay(t *testing.T) {
	clk := clock.New()
	start := time.Now()
	calls := 0
	err := Do(context.Background(), 3, func(context.Context) error {
		calls++
		return errBoom
	}, WithDelay(clk, time.Millisecond))
	test.That(t, err, test.ShouldBeError, errBoom)
	test.That(t, calls, test.ShouldEqual, 3)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 2*time.Millisecond)
}
