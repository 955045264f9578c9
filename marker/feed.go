// Package marker maintains the latest fiducial-marker observation published
// by an asynchronous tracker, with a freshness check on every read.
package marker

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	goutils "go.viam.com/utils"
)

var (
	// ErrNoObservation is returned when nothing has been published yet.
	ErrNoObservation = errors.New("no marker observation received")

	// ErrStaleObservation is returned when the latest observation is older
	// than the caller's freshness window.
	ErrStaleObservation = errors.New("marker observation is stale")
)

// Observation is a fiducial marker pose in the camera frame, stamped with the
// time it was published.
type Observation struct {
	Pose spatialmath.Pose
	At   time.Time
}

// Source reads the marker's current pose from a tracker.
type Source func(ctx context.Context) (spatialmath.Pose, error)

// Feed is a single-slot mailbox for marker observations. One goroutine
// publishes, any number read; readers only ever see a complete snapshot.
type Feed struct {
	clk    clock.Clock
	logger logging.Logger
	latest atomic.Pointer[Observation]
}

// NewFeed returns an empty feed stamping observations with clk.
func NewFeed(clk clock.Clock, logger logging.Logger) *Feed {
	return &Feed{clk: clk, logger: logger}
}

// Publish replaces the latest observation with pose, stamped now.
func (f *Feed) Publish(pose spatialmath.Pose) {
	f.latest.Store(&Observation{Pose: pose, At: f.clk.Now()})
}

// Latest returns the most recent observation if it is younger than maxAge.
func (f *Feed) Latest(maxAge time.Duration) (Observation, error) {
	obs := f.latest.Load()
	if obs == nil {
		return Observation{}, ErrNoObservation
	}
	if f.clk.Since(obs.At) > maxAge {
		return Observation{}, ErrStaleObservation
	}
	return *obs, nil
}

// Watch starts a background poller that reads src every interval and
// publishes each successful read, until ctx is cancelled. Read failures are
// expected whenever the marker is out of view and are only logged at debug.
func (f *Feed) Watch(ctx context.Context, interval time.Duration, src Source) {
	goutils.PanicCapturingGo(func() {
		for goutils.SelectContextOrWait(ctx, interval) {
			pose, err := src(ctx)
			if err != nil {
				f.logger.Debugf("marker read failed: %v", err)
				continue
			}
			f.Publish(pose)
		}
	})
}
