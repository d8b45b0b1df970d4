package mot

import (
	"image"
	"math"
)

// BoundingBox is an axis-aligned detection box in pixel coordinates.
// Invariant: X1 <= X2 and Y1 <= Y2 (enforced by whoever builds the box from detector output).
type BoundingBox struct {
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
	Confidence float64
}

// NewBoundingBox creates box from corner coordinates
func NewBoundingBox(x1, y1, x2, y2, confidence float64) BoundingBox {
	return BoundingBox{
		X1:         x1,
		Y1:         y1,
		X2:         x2,
		Y2:         y2,
		Confidence: confidence,
	}
}

// NewBoundingBoxFrom creates box from image.Rectangle
func NewBoundingBoxFrom(rect image.Rectangle, confidence float64) BoundingBox {
	return BoundingBox{
		X1:         float64(rect.Min.X),
		Y1:         float64(rect.Min.Y),
		X2:         float64(rect.Max.X),
		Y2:         float64(rect.Max.Y),
		Confidence: confidence,
	}
}

// Width returns box's width
func (box BoundingBox) Width() float64 {
	return box.X2 - box.X1
}

// Height returns box's height
func (box BoundingBox) Height() float64 {
	return box.Y2 - box.Y1
}

// Centroid returns midpoint of the box. Zero-area boxes are fine: midpoint is still defined.
func (box BoundingBox) Centroid() Centroid {
	return Centroid{
		X: (box.X1 + box.X2) / 2.0,
		Y: (box.Y1 + box.Y2) / 2.0,
	}
}

// Rect returns integer rectangle (coordinates are truncated) suitable for drawing
func (box BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
}

// Centroid is position proxy of a tracked object
type Centroid struct {
	X float64
	Y float64
}

func NewCentroid(x, y float64) Centroid {
	return Centroid{
		X: x,
		Y: y,
	}
}

// DistanceTo returns Euclidean distance to other centroid
func (c Centroid) DistanceTo(other Centroid) float64 {
	return euclideanDistance(c, other)
}

func euclideanDistance(p1, p2 Centroid) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

// Centroids converts boxes to centroids preserving input order
func Centroids(boxes []BoundingBox) []Centroid {
	centroids := make([]Centroid, len(boxes))
	for i := range boxes {
		centroids[i] = boxes[i].Centroid()
	}
	return centroids
}
