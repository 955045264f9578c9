// Package calib estimates residual camera-to-arm calibration drift by
// comparing where the camera sees the wrist-mounted fiducial marker against
// where forward kinematics says it is.
package calib

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/biotinker/locograsp/internal/attempt"
	"github.com/biotinker/locograsp/marker"
)

// Arm is the subset of arm control the drift protocol needs.
type Arm interface {
	JointAngles(ctx context.Context) ([]float64, error)
	SetJointPositions(ctx context.Context, positions []float64) error
}

// PanTilt aims the camera head.
type PanTilt interface {
	SetPanTilt(ctx context.Context, pan, tilt float64) error
}

// Transformer resolves camera-frame points and named frames into the robot
// base frame.
type Transformer interface {
	TransformPoint(ctx context.Context, pt r3.Vector, sourceFrame string) (r3.Vector, error)
	LookupPose(ctx context.Context, frame string) (spatialmath.Pose, error)
}

// Config holds the drift-estimation protocol parameters.
type Config struct {
	// Pan and Tilt aim the camera at the wrist marker.
	Pan  float64
	Tilt float64

	// PregraspPitch is the wrist pitch used to present the marker to the
	// camera.
	PregraspPitch float64

	// SettleTime is the wait after each mechanical command before sensing.
	SettleTime time.Duration

	// PollAttempts bounds how many times a fresh marker observation is
	// sought before giving up.
	PollAttempts int

	// NudgeStep is how far, in radians, the base joint sweeps between
	// marker polls.
	NudgeStep float64

	// MaxMarkerAge is the freshness window for marker observations.
	MaxMarkerAge time.Duration

	// CameraFrame and MarkerFrame name the camera optical frame and the
	// marker link in the kinematic model.
	CameraFrame string
	MarkerFrame string
}

// Corrector runs the drift-estimation protocol.
type Corrector struct {
	cfg    Config
	arm    Arm
	cam    PanTilt
	feed   *marker.Feed
	tf     Transformer
	clk    clock.Clock
	logger logging.Logger
}

// NewCorrector returns a Corrector over the given hardware.
func NewCorrector(
	cfg Config,
	arm Arm,
	cam PanTilt,
	feed *marker.Feed,
	tf Transformer,
	clk clock.Clock,
	logger logging.Logger,
) *Corrector {
	return &Corrector{cfg: cfg, arm: arm, cam: cam, feed: feed, tf: tf, clk: clk, logger: logger}
}

// EstimateDrift measures the (x, y) discrepancy, in base-frame meters,
// between the marker pose the camera observes and the pose forward
// kinematics predicts. It is deliberately forgiving: if the marker never
// comes into fresh view, or the arm refuses the presentation moves, it
// returns (0, 0) with no error so the grasp proceeds uncorrected. Only a
// transform lookup failure is a hard error.
//
// The settle sleeps are mandatory mechanical waits, not timeouts; they are
// not cut short by cancellation.
func (c *Corrector) EstimateDrift(ctx context.Context) (float64, float64, error) {
	// Aim the camera at the wrist and let the head stop shaking.
	if err := c.cam.SetPanTilt(ctx, c.cfg.Pan, c.cfg.Tilt); err != nil {
		c.logger.Warnf("calibration pan/tilt failed, skipping drift estimate: %v", err)
		return 0, 0, nil
	}
	c.clk.Sleep(c.cfg.SettleTime)

	// Fold the wrist so the marker faces the camera.
	joints, err := c.arm.JointAngles(ctx)
	if err != nil || len(joints) < 4 {
		c.logger.Warnf("joint state unavailable, skipping drift estimate: %v", err)
		return 0, 0, nil
	}
	joints[3] = -(joints[1] + joints[2]) + c.cfg.PregraspPitch
	if err := c.arm.SetJointPositions(ctx, joints); err != nil {
		c.logger.Warnf("wrist presentation move failed: %v", err)
	}
	c.clk.Sleep(2 * c.cfg.SettleTime)

	obs, err := c.freshObservation(ctx, joints)
	if err != nil {
		c.logger.Warnf("no fresh marker observation after %d polls, grasping uncorrected: %v",
			c.cfg.PollAttempts, err)
		return 0, 0, nil
	}

	observed, err := c.tf.TransformPoint(ctx, obs.Pose.Point(), c.cfg.CameraFrame)
	if err != nil {
		return 0, 0, err
	}
	kinematic, err := c.tf.LookupPose(ctx, c.cfg.MarkerFrame)
	if err != nil {
		return 0, 0, err
	}

	d := kinematic.Point().Sub(observed)
	c.logger.Infof("calibration drift: dx=%.4fm dy=%.4fm", d.X, d.Y)
	return d.X, d.Y, nil
}

// freshObservation polls the marker feed up to the configured attempt count.
// Every stale read sweeps the base joint a step back toward center, on the
// theory that the marker has panned just out of the camera's view, and
// settles; the sweep runs even on the final read before giving up.
func (c *Corrector) freshObservation(ctx context.Context, joints []float64) (marker.Observation, error) {
	var obs marker.Observation
	err := attempt.Do(ctx, c.cfg.PollAttempts, func(ctx context.Context) error {
		o, err := c.feed.Latest(c.cfg.MaxMarkerAge)
		if err != nil {
			c.sweepBase(ctx, joints)
			return err
		}
		obs = o
		return nil
	})
	return obs, err
}

func (c *Corrector) sweepBase(ctx context.Context, joints []float64) {
	c.logger.Info("marker not visible, sweeping base joint")
	joints[0] -= c.cfg.NudgeStep * sign(joints[0])
	if err := c.arm.SetJointPositions(ctx, joints); err != nil {
		c.logger.Warnf("base joint sweep failed: %v", err)
	}
	c.clk.Sleep(c.cfg.SettleTime)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
