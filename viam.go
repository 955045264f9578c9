package locograsp

import (
	"context"
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/components/posetracker"
	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"

	"github.com/biotinker/locograsp/marker"
	"github.com/biotinker/locograsp/pixelgrasp"
)

// The core pipeline works in meters; rdk poses and depths are millimeters.

func metersToMM(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.X * 1000, Y: v.Y * 1000, Z: v.Z * 1000}
}

func mmToMeters(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.X / 1000, Y: v.Y / 1000, Z: v.Z / 1000}
}

type viamArm struct {
	arm        arm.Arm
	homeJoints []float64
}

func (a *viamArm) GoHome(ctx context.Context) error {
	// referenceframe.Input is an alias for float64, so joint vectors pass
	// through unconverted.
	return a.arm.MoveToJointPositions(ctx, a.homeJoints, nil)
}

func (a *viamArm) SetJointPositions(ctx context.Context, positions []float64) error {
	return a.arm.MoveToJointPositions(ctx, positions, nil)
}

func (a *viamArm) JointAngles(ctx context.Context) ([]float64, error) {
	return a.arm.JointPositions(ctx, nil)
}

func (a *viamArm) SetEndEffectorPose(ctx context.Context, position r3.Vector, pitch, roll float64) error {
	pose := spatialmath.NewPose(
		metersToMM(position),
		&spatialmath.EulerAngles{Roll: roll, Pitch: pitch, Yaw: 0},
	)
	return a.arm.MoveToPosition(ctx, pose, nil)
}

type viamGripper struct {
	gripper gripper.Gripper
}

func (g *viamGripper) Open(ctx context.Context) error {
	return g.gripper.Open(ctx, nil)
}

func (g *viamGripper) Close(ctx context.Context) error {
	// Grab reports whether it thinks it caught something, but the hardware
	// has no reliable feedback, so the report is dropped here.
	_, err := g.gripper.Grab(ctx, nil)
	return err
}

type viamCamera struct {
	rgb   camera.Camera
	depth camera.Camera
	pan   servo.Servo
	tilt  servo.Servo
}

func (c *viamCamera) RGB(ctx context.Context) (image.Image, error) {
	return camera.DecodeImageFromCamera(ctx, c.rgb, nil, nil)
}

func (c *viamCamera) Depth(ctx context.Context) (*pixelgrasp.DepthMap, error) {
	img, err := camera.DecodeImageFromCamera(ctx, c.depth, nil, nil)
	if err != nil {
		return nil, err
	}
	dm, err := rimage.ConvertImageToDepthMap(ctx, img)
	if err != nil {
		return nil, err
	}
	out := pixelgrasp.NewDepthMap(dm.Width(), dm.Height())
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			out.Set(x, y, float64(dm.GetDepth(x, y))/1000.0)
		}
	}
	return out, nil
}

// Projection builds a fresh 3x4 projection matrix from the driver's current
// intrinsics. A new matrix per call keeps callers isolated from intrinsics
// updates behind the driver.
func (c *viamCamera) Projection(ctx context.Context) (*mat.Dense, error) {
	props, err := c.depth.Properties(ctx)
	if err != nil {
		return nil, err
	}
	ip := props.IntrinsicParams
	if ip == nil {
		return nil, errors.New("depth camera reports no intrinsics")
	}
	return mat.NewDense(3, 4, []float64{
		ip.Fx, 0, ip.Ppx, 0,
		0, ip.Fy, ip.Ppy, 0,
		0, 0, 1, 0,
	}), nil
}

func (c *viamCamera) SetPanTilt(ctx context.Context, pan, tilt float64) error {
	if err := c.pan.Move(ctx, servoAngle(pan), nil); err != nil {
		return err
	}
	return c.tilt.Move(ctx, servoAngle(tilt), nil)
}

// servoAngle converts a radian head angle to the servo's degree range, with
// 90 as straight ahead.
func servoAngle(rad float64) uint32 {
	deg := 90 + rad*180/math.Pi
	if deg < 0 {
		deg = 0
	} else if deg > 180 {
		deg = 180
	}
	return uint32(math.Round(deg))
}

type viamTransformer struct {
	machine   robot.Robot
	baseFrame string
}

func (t *viamTransformer) TransformPoint(ctx context.Context, pt r3.Vector, sourceFrame string) (r3.Vector, error) {
	in := referenceframe.NewPoseInFrame(sourceFrame, spatialmath.NewPoseFromPoint(metersToMM(pt)))
	out, err := t.machine.TransformPose(ctx, in, t.baseFrame, nil)
	if err != nil {
		return r3.Vector{}, errors.Wrapf(ErrTransformUnavailable, "%s -> %s: %v", sourceFrame, t.baseFrame, err)
	}
	return mmToMeters(out.Pose().Point()), nil
}

func (t *viamTransformer) LookupPose(ctx context.Context, frame string) (spatialmath.Pose, error) {
	in := referenceframe.NewPoseInFrame(frame, spatialmath.NewZeroPose())
	out, err := t.machine.TransformPose(ctx, in, t.baseFrame, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrTransformUnavailable, "%s -> %s: %v", frame, t.baseFrame, err)
	}
	pose := out.Pose()
	return spatialmath.NewPose(mmToMeters(pose.Point()), pose.Orientation()), nil
}

// markerSource adapts a pose tracker into the marker feed's source contract.
func markerSource(tracker posetracker.PoseTracker, body string) marker.Source {
	return func(ctx context.Context) (spatialmath.Pose, error) {
		poses, err := tracker.Poses(ctx, []string{body}, nil)
		if err != nil {
			return nil, err
		}
		pif, ok := poses[body]
		if !ok {
			return nil, errors.Errorf("tracker reports no pose for body %q", body)
		}
		p := pif.Pose()
		return spatialmath.NewPose(mmToMeters(p.Point()), p.Orientation()), nil
	}
}
