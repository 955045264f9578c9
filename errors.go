package locograsp

import "github.com/pkg/errors"

var (
	// ErrTransformUnavailable is returned when the transform service cannot
	// resolve a frame pair, e.g. because the transform tree is stale.
	ErrTransformUnavailable = errors.New("frame transform unavailable")

	// ErrMotionFailed is returned when a pose or joint command still fails
	// after its whole retry budget.
	ErrMotionFailed = errors.New("motion command failed after retries")
)
