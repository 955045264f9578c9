package locograsp

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/services/vision"
	rutils "go.viam.com/rdk/utils"

	"github.com/biotinker/locograsp/pixelgrasp"
)

// visionPredictor adapts an object-detection vision service to the grasp
// predictor contract: the center of the highest-scoring detection becomes the
// grasp pixel. The detector reports no in-plane orientation, so the grasp
// angle stays zero and the wrist relies on the azimuth term of the angle
// normalization.
type visionPredictor struct {
	svc vision.Service
}

func (p *visionPredictor) Predict(ctx context.Context, img image.Image) (pixelgrasp.PixelGrasp, error) {
	named, err := camera.NamedImageFromImage(img, "", rutils.MimeTypeRawRGBA, data.Annotations{})
	if err != nil {
		return pixelgrasp.PixelGrasp{}, err
	}
	detections, err := p.svc.Detections(ctx, &named, nil)
	if err != nil {
		return pixelgrasp.PixelGrasp{}, err
	}
	if len(detections) == 0 {
		return pixelgrasp.PixelGrasp{}, errors.New("no grasp candidates detected")
	}
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Score() > best.Score() {
			best = d
		}
	}
	box := best.BoundingBox()
	center := box.Min.Add(box.Max).Div(2)
	return pixelgrasp.PixelGrasp{Row: center.Y, Col: center.X}, nil
}
