// Package pixelgrasp converts 2D grasp predictions into 3D camera-frame
// points using the depth image and the camera projection matrix.
package pixelgrasp

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/mat"
)

// PixelGrasp is a grasp prediction in image space: the pixel to grasp at and
// the gripper orientation in the image plane.
type PixelGrasp struct {
	Row   int
	Col   int
	Angle float64 // radians
}

// Localizer back-projects grasp pixels into the camera frame.
type Localizer struct {
	cfg    Config
	logger logging.Logger
}

// NewLocalizer returns a Localizer with the given parameters.
func NewLocalizer(cfg Config, logger logging.Logger) (*Localizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Localizer{cfg: cfg, logger: logger}, nil
}

// MeanDepth averages the valid readings in the square neighborhood around
// (row, col). A reading is valid when it lies in (MinDepth, MaxDepth];
// pixels outside the map are skipped. With no valid reading at all it
// returns ErrDepthUnavailable.
func (l *Localizer) MeanDepth(dm *DepthMap, row, col int) (float64, error) {
	hw := l.cfg.NeighborhoodHalfWidth
	var sum float64
	var n int
	for i := 0; i < 2*hw; i++ {
		for j := 0; j < 2*hw; j++ {
			y := row - hw + i
			x := col - hw + j
			if !dm.Contains(x, y) {
				continue
			}
			z := dm.GetDepth(x, y)
			if z > l.cfg.MinDepth && z <= l.cfg.MaxDepth {
				sum += z
				n++
			}
		}
	}
	if n == 0 {
		return 0, ErrDepthUnavailable
	}
	return sum / float64(n), nil
}

// Localize converts the pixel (row, col) into a camera-frame point. proj is
// the camera's 3x4 projection matrix; it is copied before use so a driver
// updating its intrinsics concurrently cannot race the solve.
//
// The pinhole model gives P · (x, y, z, 1)ᵀ ~ w · (u, v, 1)ᵀ. Folding the
// estimated depth into the last column yields a 3x3 system whose inverse maps
// the homogeneous pixel back to (x, y); the depth estimate then replaces the
// homogeneous z.
func (l *Localizer) Localize(dm *DepthMap, proj *mat.Dense, row, col int) (r3.Vector, error) {
	if r, c := proj.Dims(); r != 3 || c != 4 {
		return r3.Vector{}, errors.Errorf("expected 3x4 projection matrix, got %dx%d", r, c)
	}

	dm.ClampToMax(l.cfg.MaxDepth)
	z, err := l.MeanDepth(dm, row, col)
	if err != nil {
		return r3.Vector{}, err
	}
	l.logger.Debugf("mean depth at (%d, %d): %.3fm", row, col, z)

	p := mat.DenseCopyOf(proj)
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, 0, p.At(i, 0))
		m.Set(i, 1, p.At(i, 1))
		m.Set(i, 2, p.At(i, 3)+p.At(i, 2)*z)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return r3.Vector{}, errors.Wrapf(ErrProjectionSingular, "%v", err)
	}

	// u is the column, v the row.
	uv := mat.NewVecDense(3, []float64{float64(col), float64(row), 1})
	var h mat.VecDense
	h.MulVec(&inv, uv)
	w := h.AtVec(2)
	return r3.Vector{X: h.AtVec(0) / w, Y: h.AtVec(1) / w, Z: z}, nil
}
