package locograsp

import (
	"encoding/json"
	"image"
	"math"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/biotinker/locograsp/calib"
	"github.com/biotinker/locograsp/pixelgrasp"
)

// Config holds every tunable of the grasp pipeline. It is immutable once
// handed to a Grasper; per-attempt state never lives here.
type Config struct {
	// Resource names on the machine.
	ArmName           string `json:"arm"`
	GripperName       string `json:"gripper"`
	RGBCameraName     string `json:"rgb_camera"`
	DepthCameraName   string `json:"depth_camera"`
	PanServoName      string `json:"pan_servo"`
	TiltServoName     string `json:"tilt_servo"`
	MarkerTrackerName string `json:"marker_tracker"`
	VisionServiceName string `json:"vision_service"`

	// MarkerBody is the body name the pose tracker reports the fiducial
	// under.
	MarkerBody string `json:"marker_body"`

	// Frame names for the transform service.
	BaseFrame   string `json:"base_frame"`
	CameraFrame string `json:"camera_frame"`
	MarkerFrame string `json:"marker_frame"`

	// Heights the end effector moves through, in base-frame meters.
	PregraspHeight float64 `json:"pregrasp_height_m"`
	GraspHeight    float64 `json:"grasp_height_m"`

	// DefaultPitch is the end-effector pitch for every pose command;
	// PregraspPitch is the wrist pitch used while presenting the
	// calibration marker. Radians.
	DefaultPitch  float64 `json:"default_pitch"`
	PregraspPitch float64 `json:"pregrasp_pitch"`

	// Empirically measured bias added on top of the estimated drift.
	XOffset float64 `json:"x_offset_m"`
	YOffset float64 `json:"y_offset_m"`

	// HomeJoints and RetractJoints are the arm configurations used by
	// Reset, in radians.
	HomeJoints    []float64 `json:"home_joints"`
	RetractJoints []float64 `json:"retract_joints"`

	// Camera head positions, radians. Reset recenters to the first pair;
	// calibration aims at the second.
	ResetPan        float64 `json:"reset_pan"`
	ResetTilt       float64 `json:"reset_tilt"`
	CalibrationPan  float64 `json:"calibration_pan"`
	CalibrationTilt float64 `json:"calibration_tilt"`

	// SettleTime is the mechanical settling wait after motion commands.
	SettleTime time.Duration `json:"settle_time"`

	// MaxMarkerAge is the freshness window for marker observations;
	// MarkerPolls bounds the fresh-observation search; NudgeStep is the
	// base-joint sweep between polls, radians.
	MaxMarkerAge time.Duration `json:"max_marker_age"`
	MarkerPolls  int           `json:"marker_polls"`
	NudgeStep    float64       `json:"nudge_step"`

	// MotionTries is the retry budget for every motion primitive.
	MotionTries int `json:"motion_tries"`

	// Crop is the RGB region handed to the predictor (x = column, y = row).
	Crop image.Rectangle `json:"crop"`

	// Localizer holds the depth back-projection parameters.
	Localizer pixelgrasp.Config `json:"localizer"`
}

// DefaultConfig returns the configuration tuned on the physical robot.
func DefaultConfig() Config {
	return Config{
		ArmName:           "arm",
		GripperName:       "gripper",
		RGBCameraName:     "rgb-camera",
		DepthCameraName:   "depth-camera",
		PanServoName:      "pan-servo",
		TiltServoName:     "tilt-servo",
		MarkerTrackerName: "marker-tracker",
		VisionServiceName: "grasp-detector",

		MarkerBody: "ar_marker",

		BaseFrame:   "base_link",
		CameraFrame: "camera_color_optical_frame",
		MarkerFrame: "ar_tag",

		PregraspHeight: 0.25,
		GraspHeight:    0.13,
		DefaultPitch:   1.57,
		PregraspPitch:  -0.2,

		XOffset: 0.0,
		YOffset: 0.03,

		HomeJoints:    []float64{0, 0, 0, 0, 0},
		RetractJoints: []float64{-1.5, 0.5, 0.3, -0.7, 0.0},

		ResetPan:        0.0,
		ResetTilt:       0.8,
		CalibrationPan:  0.0,
		CalibrationTilt: 0.5,

		SettleTime:   3 * time.Second,
		MaxMarkerAge: time.Second,
		MarkerPolls:  5,
		NudgeStep:    2 * math.Pi / 180,

		MotionTries: 5,

		Crop: image.Rect(100, 240, 540, 480),

		Localizer: pixelgrasp.DefaultConfig(),
	}
}

// Validate checks the config for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.MotionTries <= 0 {
		return errors.New("motion tries must be positive")
	}
	if c.MarkerPolls <= 0 {
		return errors.New("marker polls must be positive")
	}
	if len(c.RetractJoints) < 4 {
		return errors.Errorf("need at least 4 retract joints, got %d", len(c.RetractJoints))
	}
	if len(c.HomeJoints) != len(c.RetractJoints) {
		return errors.New("home and retract joint configurations must have the same length")
	}
	if c.GraspHeight >= c.PregraspHeight {
		return errors.Errorf("grasp height %.3f must be below pregrasp height %.3f",
			c.GraspHeight, c.PregraspHeight)
	}
	if c.Crop.Empty() {
		return errors.New("predictor crop region is empty")
	}
	if c.MaxMarkerAge <= 0 {
		return errors.New("marker freshness window must be positive")
	}
	return c.Localizer.Validate()
}

// calibConfig derives the drift-estimation protocol parameters.
func (c Config) calibConfig() calib.Config {
	return calib.Config{
		Pan:           c.CalibrationPan,
		Tilt:          c.CalibrationTilt,
		PregraspPitch: c.PregraspPitch,
		SettleTime:    c.SettleTime,
		PollAttempts:  c.MarkerPolls,
		NudgeStep:     c.NudgeStep,
		MaxMarkerAge:  c.MaxMarkerAge,
		CameraFrame:   c.CameraFrame,
		MarkerFrame:   c.MarkerFrame,
	}
}

// LoadConfig returns the defaults overlaid with the JSON file at path, if
// any. Duration fields accept Go duration strings ("3s").
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config file")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Wrap(err, "parsing config file")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
		TagName:    "json",
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, errors.Wrap(err, "applying config overrides")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
