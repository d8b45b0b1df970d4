package detect

import (
	"context"
	"image"
	"math"

	"github.com/LdDl/headcount/mot"
	"github.com/pkg/errors"
)

// ErrMalformedDetection is returned when raw detector output can't be converted to a bounding box
var ErrMalformedDetection = errors.New("malformed detection")

// Detector returns boxes of the target class found on a raster frame.
// Order of returned boxes is not guaranteed.
type Detector interface {
	Detect(ctx context.Context, raster image.Image) ([]mot.BoundingBox, error)
}

// RawDetection is detector output before normalization.
// Coordinates hold exactly one row [x1 y1 x2 y2]: flat and one-element nested payloads both map to it.
type RawDetection struct {
	Class      int
	XYXY       [][]float64
	Confidence float64
}

// Normalize converts raw detection into BoundingBox once, at the detector boundary.
// It never falls back silently: anything unexpected is ErrMalformedDetection.
func Normalize(raw RawDetection) (mot.BoundingBox, error) {
	if len(raw.XYXY) != 1 {
		return mot.BoundingBox{}, errors.Wrapf(ErrMalformedDetection, "need exactly one coordinate row, got %d", len(raw.XYXY))
	}
	coords := raw.XYXY[0]
	if len(coords) != 4 {
		return mot.BoundingBox{}, errors.Wrapf(ErrMalformedDetection, "need 4 coordinates, got %d", len(coords))
	}
	for i, v := range coords {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return mot.BoundingBox{}, errors.Wrapf(ErrMalformedDetection, "coordinate %d is %v", i, v)
		}
	}
	if math.IsNaN(raw.Confidence) || raw.Confidence < 0 || raw.Confidence > 1 {
		return mot.BoundingBox{}, errors.Wrapf(ErrMalformedDetection, "confidence %v is out of [0, 1]", raw.Confidence)
	}
	x1, y1, x2, y2 := coords[0], coords[1], coords[2], coords[3]
	if x1 > x2 || y1 > y2 {
		return mot.BoundingBox{}, errors.Wrapf(ErrMalformedDetection, "inverted box [%v %v %v %v]", x1, y1, x2, y2)
	}
	return mot.NewBoundingBox(x1, y1, x2, y2, raw.Confidence), nil
}

// FilterClass normalizes detections of the given class with confidence >= threshold.
// A single malformed detection fails the whole frame.
func FilterClass(raws []RawDetection, classID int, confThreshold float64) ([]mot.BoundingBox, error) {
	boxes := make([]mot.BoundingBox, 0, len(raws))
	for i := range raws {
		if raws[i].Class != classID {
			continue
		}
		box, err := Normalize(raws[i])
		if err != nil {
			return nil, errors.Wrapf(err, "detection %d", i)
		}
		if box.Confidence < confThreshold {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// Func is an adapter to allow the use of ordinary functions as Detector
type Func func(ctx context.Context, raster image.Image) ([]mot.BoundingBox, error)

// Detect calls f(ctx, raster)
func (f Func) Detect(ctx context.Context, raster image.Image) ([]mot.BoundingBox, error) {
	return f(ctx, raster)
}
