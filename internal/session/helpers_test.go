package session

import (
	"image"
	"time"

	"github.com/LdDl/headcount/mot"
)

var fixedClock = func() time.Time { return time.Unix(1700000000, 0) }

// boxAt returns 20x40 box centered at (x, y)
func boxAt(x, y float64) mot.BoundingBox {
	return mot.NewBoundingBox(x-10, y-20, x+10, y+20, 0.9)
}

func framesOf(boxesPerFrame ...[]mot.BoundingBox) []Frame {
	frames := make([]Frame, len(boxesPerFrame))
	for i, boxes := range boxesPerFrame {
		frames[i] = Frame{
			Raster: image.NewRGBA(image.Rect(0, 0, 640, 480)),
			Boxes:  boxes,
		}
	}
	return frames
}

func runCounts(t interface{ Fatalf(string, ...interface{}) }, maxDisappeared int, frames []Frame) *Result {
	result, err := RunFrames(frames, maxDisappeared, NewWindow(5, 25, 0), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("RunFrames: %v", err)
	}
	return result
}
