package locograsp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestDefaultConfigValidates(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraspHeight = cfg.PregraspHeight
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.MotionTries = 0
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.RetractJoints = []float64{0, 0, 0}
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.Localizer.NeighborhoodHalfWidth = 0
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, DefaultConfig())
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"arm": "left-arm",
		"pregrasp_height_m": 0.3,
		"settle_time": "500ms",
		"y_offset_m": 0.05
	}`
	test.That(t, os.WriteFile(path, []byte(body), 0o644), test.ShouldBeNil)

	cfg, err := LoadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ArmName, test.ShouldEqual, "left-arm")
	test.That(t, cfg.PregraspHeight, test.ShouldAlmostEqual, 0.3)
	test.That(t, cfg.SettleTime, test.ShouldEqual, 500*time.Millisecond)
	test.That(t, cfg.YOffset, test.ShouldAlmostEqual, 0.05)
	// Untouched fields keep their defaults.
	test.That(t, cfg.GripperName, test.ShouldEqual, "gripper")
	test.That(t, cfg.GraspHeight, test.ShouldAlmostEqual, 0.13)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"grasp_height_m": 0.9}`
	test.That(t, os.WriteFile(path, []byte(body), 0o644), test.ShouldBeNil)

	_, err := LoadConfig(path)
	test.That(t, err, test.ShouldNotBeNil)
}
