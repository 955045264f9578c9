package locograsp

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/biotinker/locograsp/pixelgrasp"
)

func TestRunReportsWhenAllAttemptsFail(t *testing.T) {
	h := newTestHarness(t)
	h.predictor.pg = pixelgrasp.PixelGrasp{Row: 60, Col: 220}
	h.arm.poseFailures = -1 // every motion stage fails

	err := Run(context.Background(), h.grasper, 2)
	test.That(t, err, test.ShouldBeError)

	// Two attempt resets plus the final parking reset.
	test.That(t, h.arm.homeCalls, test.ShouldEqual, 3)
}

func TestRunSucceeds(t *testing.T) {
	h := newTestHarness(t)
	h.predictor.pg = pixelgrasp.PixelGrasp{Row: 60, Col: 220}

	err := Run(context.Background(), h.grasper, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.gripper.closes, test.ShouldEqual, 1)
	// Attempt reset plus the final parking reset.
	test.That(t, h.arm.homeCalls, test.ShouldEqual, 2)
}

func TestRunContinuesPastLocalizationFailure(t *testing.T) {
	h := newTestHarness(t)
	h.predictor.pg = pixelgrasp.PixelGrasp{Row: 60, Col: 220}
	// First attempt sees a depth frame with no valid readings and fails at
	// localization; the second sees a good frame and completes.
	h.camera.depthOnce = pixelgrasp.NewDepthMap(640, 480)

	err := Run(context.Background(), h.grasper, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.gripper.closes, test.ShouldEqual, 1)
}
