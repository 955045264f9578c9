package calib

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/biotinker/locograsp/marker"
)

type fakeArm struct {
	joints   []float64
	setCalls [][]float64
	setErr   error
}

func (a *fakeArm) JointAngles(context.Context) ([]float64, error) {
	out := make([]float64, len(a.joints))
	copy(out, a.joints)
	return out, nil
}

func (a *fakeArm) SetJointPositions(_ context.Context, positions []float64) error {
	cp := make([]float64, len(positions))
	copy(cp, positions)
	a.setCalls = append(a.setCalls, cp)
	return a.setErr
}

type fakePanTilt struct {
	pan, tilt float64
}

func (p *fakePanTilt) SetPanTilt(_ context.Context, pan, tilt float64) error {
	p.pan, p.tilt = pan, tilt
	return nil
}

type fakeTransformer struct {
	observedOffset r3.Vector // camera-to-base translation applied by TransformPoint
	kinematicPose  spatialmath.Pose
	lookupErr      error
}

func (t *fakeTransformer) TransformPoint(_ context.Context, pt r3.Vector, _ string) (r3.Vector, error) {
	return pt.Add(t.observedOffset), nil
}

func (t *fakeTransformer) LookupPose(_ context.Context, _ string) (spatialmath.Pose, error) {
	if t.lookupErr != nil {
		return nil, t.lookupErr
	}
	return t.kinematicPose, nil
}

// testConfig keeps the settle waits effectively instant so the protocol runs
// at test speed.
func testConfig() Config {
	return Config{
		Pan:           0,
		Tilt:          0.5,
		PregraspPitch: -0.2,
		SettleTime:    time.Millisecond,
		PollAttempts:  5,
		NudgeStep:     2 * 3.141592653589793 / 180,
		MaxMarkerAge:  time.Second,
		CameraFrame:   "camera_color_optical_frame",
		MarkerFrame:   "ar_tag",
	}
}

func TestEstimateDriftSuccess(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.New()
	arm := &fakeArm{joints: []float64{0.3, 0.2, 0.1, 0.0, 0.0}}
	cam := &fakePanTilt{}
	feed := marker.NewFeed(clk, logger)
	feed.Publish(spatialmath.NewPoseFromPoint(r3.Vector{X: 0.01, Y: 0.02, Z: 0.5}))

	tf := &fakeTransformer{
		observedOffset: r3.Vector{X: 0.1, Y: 0.1, Z: 0.1},
		kinematicPose:  spatialmath.NewPoseFromPoint(r3.Vector{X: 0.15, Y: 0.09, Z: 0.6}),
	}

	c := NewCorrector(testConfig(), arm, cam, feed, tf, clk, logger)
	dx, dy, err := c.EstimateDrift(context.Background())
	test.That(t, err, test.ShouldBeNil)
	// kinematic (0.15, 0.09) minus observed (0.11, 0.12).
	test.That(t, dx, test.ShouldAlmostEqual, 0.04, 1e-9)
	test.That(t, dy, test.ShouldAlmostEqual, -0.03, 1e-9)

	// The camera was aimed at the calibration pose.
	test.That(t, cam.pan, test.ShouldAlmostEqual, 0)
	test.That(t, cam.tilt, test.ShouldAlmostEqual, 0.5)

	// The wrist was folded to face the camera: j3 = -(j1+j2) + pitch.
	test.That(t, len(arm.setCalls), test.ShouldEqual, 1)
	test.That(t, arm.setCalls[0][3], test.ShouldAlmostEqual, -(0.2+0.1)-0.2, 1e-9)
}

func TestEstimateDriftNoMarkerSoftFails(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.New()
	arm := &fakeArm{joints: []float64{0.5, 0.2, 0.1, 0.0, 0.0}}
	feed := marker.NewFeed(clk, logger) // never published

	c := NewCorrector(testConfig(), arm, &fakePanTilt{}, feed, &fakeTransformer{}, clk, logger)
	dx, dy, err := c.EstimateDrift(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dx, test.ShouldEqual, 0.0)
	test.That(t, dy, test.ShouldEqual, 0.0)

	// One wrist presentation move plus a sweep after every one of the five
	// stale polls, including the last.
	test.That(t, len(arm.setCalls), test.ShouldEqual, 6)

	// Each sweep steps the base joint back toward center.
	step := testConfig().NudgeStep
	for i, call := range arm.setCalls[1:] {
		test.That(t, call[0], test.ShouldAlmostEqual, 0.5-float64(i+1)*step, 1e-9)
	}
}

func TestEstimateDriftStaleMarkerSoftFails(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.New()
	arm := &fakeArm{joints: []float64{-0.4, 0.1, 0.1, 0.0, 0.0}}
	feed := marker.NewFeed(clk, logger)
	feed.Publish(spatialmath.NewPoseFromPoint(r3.Vector{X: 0.01}))

	// A zero freshness window makes any published observation stale.
	cfg := testConfig()
	cfg.MaxMarkerAge = 0
	c := NewCorrector(cfg, arm, &fakePanTilt{}, feed, &fakeTransformer{}, clk, logger)
	dx, dy, err := c.EstimateDrift(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dx, test.ShouldEqual, 0.0)
	test.That(t, dy, test.ShouldEqual, 0.0)
}

func TestEstimateDriftTransformFailureIsHard(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.New()
	arm := &fakeArm{joints: []float64{0.0, 0.2, 0.1, 0.0, 0.0}}
	feed := marker.NewFeed(clk, logger)
	feed.Publish(spatialmath.NewPoseFromPoint(r3.Vector{X: 0.01}))

	errLookup := errors.New("transform tree stale")
	tf := &fakeTransformer{lookupErr: errLookup}

	c := NewCorrector(testConfig(), arm, &fakePanTilt{}, feed, tf, clk, logger)
	_, _, err := c.EstimateDrift(context.Background())
	test.That(t, err, test.ShouldBeError, errLookup)
}

func TestEstimateDriftZeroBaseJointDoesNotSweep(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.New()
	arm := &fakeArm{joints: []float64{0.0, 0.2, 0.1, 0.0, 0.0}}
	feed := marker.NewFeed(clk, logger)

	c := NewCorrector(testConfig(), arm, &fakePanTilt{}, feed, &fakeTransformer{}, clk, logger)
	_, _, err := c.EstimateDrift(context.Background())
	test.That(t, err, test.ShouldBeNil)
	for _, call := range arm.setCalls {
		test.That(t, call[0], test.ShouldEqual, 0.0)
	}
}
