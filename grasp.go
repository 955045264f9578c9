package locograsp

import (
	"context"
	"image"
	"image/draw"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	"github.com/biotinker/locograsp/calib"
	"github.com/biotinker/locograsp/internal/attempt"
	"github.com/biotinker/locograsp/pixelgrasp"
)

// Stage is where a grasp attempt currently is. Stages advance strictly in
// order; Failed is reachable from any motion stage.
type Stage string

// The grasp attempt stages.
const (
	StageIdle       Stage = "idle"
	StageReset      Stage = "reset"
	StageLocalizing Stage = "localizing"
	StagePreGrasp1  Stage = "pregrasp-1"
	StageCorrecting Stage = "correcting"
	StagePreGrasp2  Stage = "pregrasp-2"
	StageGrasping   Stage = "grasping"
	StageClosing    Stage = "closing"
	StageRetract    Stage = "retract"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Target is a grasp goal in the robot base frame: where to close the gripper
// in the XY plane, and the grasp orientation carried over from the image.
// Heights come from configuration.
type Target struct {
	X     float64 // m
	Y     float64 // m
	Angle float64 // radians, image frame
}

// driftEstimator is satisfied by calib.Corrector.
type driftEstimator interface {
	EstimateDrift(ctx context.Context) (float64, float64, error)
}

// Grasper drives the grasp state machine. It owns all attempt-scoped state;
// only one attempt runs at a time.
type Grasper struct {
	cfg       Config
	logger    logging.Logger
	clk       clock.Clock
	arm       Arm
	gripper   Gripper
	camera    Camera
	predictor Predictor
	tf        Transformer
	localizer *pixelgrasp.Localizer
	corrector driftEstimator

	stage Stage
}

// NewGrasper builds a Grasper over the robot's drivers.
func NewGrasper(cfg Config, r *Robot, clk clock.Clock, logger logging.Logger) (*Grasper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	localizer, err := pixelgrasp.NewLocalizer(cfg.Localizer, logger)
	if err != nil {
		return nil, err
	}
	return &Grasper{
		cfg:       cfg,
		logger:    logger,
		clk:       clk,
		arm:       r.Arm,
		gripper:   r.Gripper,
		camera:    r.Camera,
		predictor: r.Predictor,
		tf:        r.Transformer,
		localizer: localizer,
		corrector: calib.NewCorrector(cfg.calibConfig(), r.Arm, r.Camera, r.Markers, r.Transformer, clk, logger),
		stage:     StageIdle,
	}, nil
}

// Stage returns the stage the last operation left the attempt in.
func (g *Grasper) Stage() Stage {
	return g.stage
}

func (g *Grasper) setStage(s Stage) {
	g.stage = s
	g.logger.Infof("stage: %s", s)
}

func (g *Grasper) fail(err error) error {
	g.setStage(StageFailed)
	return err
}

// Reset drives the arm home and then to the retract configuration, retrying
// the pair up to the motion budget. The gripper opens and the camera head
// recenters afterward no matter how the arm did; those are best-effort side
// effects and only the arm's outcome is reported.
func (g *Grasper) Reset(ctx context.Context) error {
	g.setStage(StageReset)
	armErr := attempt.Do(ctx, g.cfg.MotionTries, func(ctx context.Context) error {
		if err := g.arm.GoHome(ctx); err != nil {
			return err
		}
		return g.arm.SetJointPositions(ctx, g.cfg.RetractJoints)
	})

	var sideErr error
	if err := g.gripper.Open(ctx); err != nil {
		sideErr = multierr.Append(sideErr, errors.Wrap(err, "gripper open"))
	}
	if err := g.camera.SetPanTilt(ctx, g.cfg.ResetPan, g.cfg.ResetTilt); err != nil {
		sideErr = multierr.Append(sideErr, errors.Wrap(err, "camera recenter"))
	}
	if sideErr != nil {
		g.logger.Warnf("reset side effects: %v", sideErr)
	}

	if armErr != nil {
		return g.fail(errors.Wrapf(ErrMotionFailed, "arm reset: %v", armErr))
	}
	return nil
}

// ComputeGrasp asks the predictor for a grasp over the configured crop of the
// current RGB frame and localizes it into a base-frame target. The predicted
// angle passes through untouched.
func (g *Grasper) ComputeGrasp(ctx context.Context) (*Target, error) {
	g.setStage(StageLocalizing)

	img, err := g.camera.RGB(ctx)
	if err != nil {
		return nil, g.fail(errors.Wrap(err, "rgb snapshot"))
	}
	pg, err := g.predictor.Predict(ctx, cropImage(img, g.cfg.Crop))
	if err != nil {
		return nil, g.fail(errors.Wrap(err, "grasp prediction"))
	}
	// The prediction is relative to the crop; shift back to full-frame
	// pixels.
	pg.Row += g.cfg.Crop.Min.Y
	pg.Col += g.cfg.Crop.Min.X
	g.logger.Infof("pixel grasp: row=%d col=%d angle=%.3f", pg.Row, pg.Col, pg.Angle)

	dm, err := g.camera.Depth(ctx)
	if err != nil {
		return nil, g.fail(errors.Wrap(err, "depth snapshot"))
	}
	proj, err := g.camera.Projection(ctx)
	if err != nil {
		return nil, g.fail(errors.Wrap(err, "camera projection"))
	}
	camPt, err := g.localizer.Localize(dm, proj, pg.Row, pg.Col)
	if err != nil {
		return nil, g.fail(err)
	}
	basePt, err := g.tf.TransformPoint(ctx, camPt, g.cfg.CameraFrame)
	if err != nil {
		return nil, g.fail(err)
	}
	g.logger.Infof("grasp target: camera=(%.3f, %.3f, %.3f) base=(%.3f, %.3f, %.3f)",
		camPt.X, camPt.Y, camPt.Z, basePt.X, basePt.Y, basePt.Z)

	return &Target{X: basePt.X, Y: basePt.Y, Angle: pg.Angle}, nil
}

// ExecuteGrasp runs the staged motion sequence against the target: pregrasp
// above it, drift correction, corrected pregrasp with the grasp roll, descent,
// close, and retract. Any stage failing aborts the attempt in place; nothing
// rolls back, and the arm stays wherever the failure left it.
func (g *Grasper) ExecuteGrasp(ctx context.Context, target *Target) error {
	g.setStage(StagePreGrasp1)
	if err := g.setPose(ctx, r3.Vector{X: target.X, Y: target.Y, Z: g.cfg.PregraspHeight}, 0); err != nil {
		return g.fail(err)
	}
	g.settle(ctx)

	g.setStage(StageCorrecting)
	dx, dy, err := g.corrector.EstimateDrift(ctx)
	if err != nil {
		return g.fail(err)
	}
	target.X += dx + g.cfg.XOffset
	target.Y += dy + g.cfg.YOffset
	roll := graspAngle(target)
	g.logger.Infof("corrected target: x=%.3f y=%.3f roll=%.3f", target.X, target.Y, roll)

	pregrasp := r3.Vector{X: target.X, Y: target.Y, Z: g.cfg.PregraspHeight}
	g.setStage(StagePreGrasp2)
	if err := g.setPose(ctx, pregrasp, roll); err != nil {
		return g.fail(err)
	}
	g.settle(ctx)

	g.setStage(StageGrasping)
	if err := g.setPose(ctx, r3.Vector{X: target.X, Y: target.Y, Z: g.cfg.GraspHeight}, roll); err != nil {
		return g.fail(err)
	}
	g.settle(ctx)

	g.setStage(StageClosing)
	if err := g.gripper.Close(ctx); err != nil {
		// No grip feedback exists; a close error here does not prove the
		// grasp failed.
		g.logger.Warnf("gripper close: %v", err)
	}
	g.settle(ctx)

	g.setStage(StageRetract)
	if err := g.setPose(ctx, pregrasp, roll); err != nil {
		return g.fail(err)
	}

	g.setStage(StageDone)
	return nil
}

// Calibrate runs the drift estimator once, outside any grasp attempt. Useful
// for checking the camera-to-arm calibration from the command line.
func (g *Grasper) Calibrate(ctx context.Context) (float64, float64, error) {
	g.setStage(StageCorrecting)
	dx, dy, err := g.corrector.EstimateDrift(ctx)
	if err != nil {
		return 0, 0, g.fail(err)
	}
	g.setStage(StageIdle)
	return dx, dy, nil
}

// setPose commands the end effector to position with the fixed pitch and the
// given roll, retrying up to the motion budget.
func (g *Grasper) setPose(ctx context.Context, position r3.Vector, roll float64) error {
	err := attempt.Do(ctx, g.cfg.MotionTries, func(ctx context.Context) error {
		return g.arm.SetEndEffectorPose(ctx, position, g.cfg.DefaultPitch, roll)
	})
	if err != nil {
		return errors.Wrapf(ErrMotionFailed, "end effector to (%.3f, %.3f, %.3f): %v",
			position.X, position.Y, position.Z, err)
	}
	return nil
}

func (g *Grasper) settle(ctx context.Context) {
	goutils.SelectContextOrWait(ctx, g.cfg.SettleTime)
}

// graspAngle maps the image-frame grasp orientation into a wrist roll
// relative to the arm's azimuth to the target, wrapped into [-pi/2, pi/2].
func graspAngle(t *Target) float64 {
	a := t.Angle + math.Atan2(t.Y, t.X)
	for a > math.Pi/2 {
		a -= math.Pi
	}
	for a < -math.Pi/2 {
		a += math.Pi
	}
	return a
}

// cropImage returns the region r of img with the origin moved to (0, 0), so
// predictions come back in crop-relative coordinates.
func cropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
