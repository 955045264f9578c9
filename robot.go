// Package locograsp turns 2D grasp predictions into executed grasps on a
// LoCoBot-class arm: depth-based localization, camera-to-base frame
// transforms, per-attempt calibration drift correction against a wrist
// fiducial, and staged pose execution with bounded retries.
package locograsp

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/components/posetracker"
	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/services/vision"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"

	"github.com/biotinker/locograsp/marker"
	"github.com/biotinker/locograsp/pixelgrasp"
)

// markerPollInterval is how often the marker tracker is polled for the feed.
const markerPollInterval = 200 * time.Millisecond

// Arm issues joint and end-effector commands. All units are radians and
// base-frame meters; calls block until the motion completes or fails.
type Arm interface {
	GoHome(ctx context.Context) error
	SetJointPositions(ctx context.Context, positions []float64) error
	JointAngles(ctx context.Context) ([]float64, error)
	SetEndEffectorPose(ctx context.Context, position r3.Vector, pitch, roll float64) error
}

// Gripper opens and closes the end effector. Close gives no feedback on
// whether anything was actually caught.
type Gripper interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// Camera exposes the RGBD head: images, depth in meters, a per-call snapshot
// of the 3x4 projection matrix, and the pan/tilt mount.
type Camera interface {
	RGB(ctx context.Context) (image.Image, error)
	Depth(ctx context.Context) (*pixelgrasp.DepthMap, error)
	Projection(ctx context.Context) (*mat.Dense, error)
	SetPanTilt(ctx context.Context, pan, tilt float64) error
}

// Predictor is the external grasp model: an image in, a pixel-space grasp
// out.
type Predictor interface {
	Predict(ctx context.Context, img image.Image) (pixelgrasp.PixelGrasp, error)
}

// Transformer resolves camera-frame points and named frames into the robot
// base frame. Lookups are never cached; the calibration loop changes the
// answer between calls.
type Transformer interface {
	TransformPoint(ctx context.Context, pt r3.Vector, sourceFrame string) (r3.Vector, error)
	LookupPose(ctx context.Context, frame string) (spatialmath.Pose, error)
}

// Robot aggregates the hardware-facing drivers the grasp pipeline runs
// against. Fields are exported so tests can assemble one from fakes.
type Robot struct {
	Arm         Arm
	Gripper     Gripper
	Camera      Camera
	Predictor   Predictor
	Transformer Transformer
	Markers     *marker.Feed

	logger logging.Logger
}

// NewRobot wires a Robot from the resources of a machine and starts the
// marker feed poller. The poller stops when ctx is cancelled.
func NewRobot(ctx context.Context, machine robot.Robot, cfg Config, clk clock.Clock, logger logging.Logger) (*Robot, error) {
	armc, err := arm.FromProvider(machine, cfg.ArmName)
	if err != nil {
		return nil, errors.Wrapf(err, "arm %q", cfg.ArmName)
	}
	gripperc, err := gripper.FromProvider(machine, cfg.GripperName)
	if err != nil {
		return nil, errors.Wrapf(err, "gripper %q", cfg.GripperName)
	}
	rgb, err := camera.FromProvider(machine, cfg.RGBCameraName)
	if err != nil {
		return nil, errors.Wrapf(err, "rgb camera %q", cfg.RGBCameraName)
	}
	depth, err := camera.FromProvider(machine, cfg.DepthCameraName)
	if err != nil {
		return nil, errors.Wrapf(err, "depth camera %q", cfg.DepthCameraName)
	}
	pan, err := servo.FromProvider(machine, cfg.PanServoName)
	if err != nil {
		return nil, errors.Wrapf(err, "pan servo %q", cfg.PanServoName)
	}
	tilt, err := servo.FromProvider(machine, cfg.TiltServoName)
	if err != nil {
		return nil, errors.Wrapf(err, "tilt servo %q", cfg.TiltServoName)
	}
	tracker, err := posetracker.FromProvider(machine, cfg.MarkerTrackerName)
	if err != nil {
		return nil, errors.Wrapf(err, "pose tracker %q", cfg.MarkerTrackerName)
	}
	detector, err := vision.FromRobot(machine, cfg.VisionServiceName)
	if err != nil {
		return nil, errors.Wrapf(err, "vision service %q", cfg.VisionServiceName)
	}

	feed := marker.NewFeed(clk, logger)
	feed.Watch(ctx, markerPollInterval, markerSource(tracker, cfg.MarkerBody))

	return &Robot{
		Arm:         &viamArm{arm: armc, homeJoints: cfg.HomeJoints},
		Gripper:     &viamGripper{gripper: gripperc},
		Camera:      &viamCamera{rgb: rgb, depth: depth, pan: pan, tilt: tilt},
		Predictor:   &visionPredictor{svc: detector},
		Transformer: &viamTransformer{machine: machine, baseFrame: cfg.BaseFrame},
		Markers:     feed,
		logger:      logger,
	}, nil
}
