package vision

import (
	"context"
	"image"
	"sync"

	"github.com/LdDl/headcount/internal/detect"
	"github.com/LdDl/headcount/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultIoUThreshold is NMS overlap threshold
const DefaultIoUThreshold = 0.7

// YOLODetector runs YOLOv8-like ONNX model through OpenCV DNN.
// Model output is expected as [1, 4+classes, candidates] with boxes in center format.
type YOLODetector struct {
	net          gocv.Net
	mu           sync.Mutex
	classID      int
	confidence   float32
	iouThreshold float32
	inputSize    int
}

// NewYOLODetector loads model weights. Only detections of classID with score >= confThreshold are returned
func NewYOLODetector(modelPath string, classID int, confThreshold float64, inputSize int) (*YOLODetector, error) {
	if inputSize <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", inputSize)
	}
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		net.Close()
		return nil, errors.Errorf("can't load model %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "can't set backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "can't set target")
	}
	return &YOLODetector{
		net:          net,
		classID:      classID,
		confidence:   float32(confThreshold),
		iouThreshold: DefaultIoUThreshold,
		inputSize:    inputSize,
	}, nil
}

// Detect implements detect.Detector. Network is not reentrant, so concurrent calls are serialized
func (d *YOLODetector) Detect(ctx context.Context, raster image.Image) ([]mot.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := gocv.ImageToMatRGB(raster)
	if err != nil {
		return nil, errors.Wrap(err, "can't convert image to mat")
	}
	defer img.Close()

	width, height := img.Cols(), img.Rows()
	maxDim := max(width, height)
	if maxDim == 0 {
		return []mot.BoundingBox{}, nil
	}

	// Letterbox: image goes to the top-left corner of a square canvas, so only scaling is needed afterwards
	square := gocv.NewMatWithSize(maxDim, maxDim, gocv.MatTypeCV8UC3)
	defer square.Close()
	roi := square.Region(image.Rect(0, 0, width, height))
	img.CopyTo(&roi)
	roi.Close()
	scale := float32(maxDim) / float32(d.inputSize)

	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	raws, err := d.decode(output, scale, width, height)
	if err != nil {
		return nil, err
	}
	return detect.FilterClass(raws, d.classID, float64(d.confidence))
}

func (d *YOLODetector) decode(output gocv.Mat, scale float32, width, height int) ([]detect.RawDetection, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, errors.Wrapf(detect.ErrMalformedDetection, "unexpected output shape %v", dims)
	}
	attributes, candidates := dims[1], dims[2]
	scoreRow := 4 + d.classID
	if scoreRow >= attributes {
		return nil, errors.Wrapf(detect.ErrMalformedDetection, "class %d is not in model output with %d attributes", d.classID, attributes)
	}

	rects := make([]image.Rectangle, 0)
	scores := make([]float32, 0)
	coords := make([][4]float64, 0)
	for i := 0; i < candidates; i++ {
		score := output.GetFloatAt3(0, scoreRow, i)
		if score < d.confidence {
			continue
		}
		cx := output.GetFloatAt3(0, 0, i)
		cy := output.GetFloatAt3(0, 1, i)
		w := output.GetFloatAt3(0, 2, i)
		h := output.GetFloatAt3(0, 3, i)
		x1 := clamp((cx-w/2)*scale, float32(width))
		y1 := clamp((cy-h/2)*scale, float32(height))
		x2 := clamp((cx+w/2)*scale, float32(width))
		y2 := clamp((cy+h/2)*scale, float32(height))
		rects = append(rects, image.Rect(int(x1), int(y1), int(x2), int(y2)))
		scores = append(scores, score)
		coords = append(coords, [4]float64{float64(x1), float64(y1), float64(x2), float64(y2)})
	}
	if len(rects) == 0 {
		return []detect.RawDetection{}, nil
	}

	indices := gocv.NMSBoxes(rects, scores, d.confidence, d.iouThreshold)
	raws := make([]detect.RawDetection, 0, len(indices))
	for _, idx := range indices {
		c := coords[idx]
		raws = append(raws, detect.RawDetection{
			Class:      d.classID,
			XYXY:       [][]float64{{c[0], c[1], c[2], c[3]}},
			Confidence: float64(scores[idx]),
		})
	}
	return raws, nil
}

// Close releases network
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func clamp(v, upper float32) float32 {
	if v < 0 {
		return 0
	}
	if v > upper {
		return upper
	}
	return v
}
