package pixelgrasp

import "errors"

var (
	// ErrDepthUnavailable is returned when a pixel neighborhood contains no
	// depth samples inside the sensor's trusted range.
	ErrDepthUnavailable = errors.New("no valid depth samples in neighborhood")

	// ErrProjectionSingular is returned when the back-projection matrix built
	// from the camera projection cannot be inverted.
	ErrProjectionSingular = errors.New("back-projection matrix is singular")
)
