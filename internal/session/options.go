package session

import (
	"math"
	"time"
)

// DefaultFPS is used when frame source can't report its frame rate
const DefaultFPS = 25.0

// maxFrames bounds frame indices so that window math never overflows int, even on 32-bit platforms
const maxFrames = float64(math.MaxInt32)

// Options configures a single counting session
type Options struct {
	// Max number of consecutive frames a tracked object could stay unmatched. Default is 10
	MaxDisappeared int
	// Window duration in seconds. Default is 5
	Seconds float64
	// Window start offset in seconds. Default is 0
	StartTimeSec float64
	// Run detection on every Nth frame only. Default is 1 (every frame)
	SubsampleEvery int
	// Number of frames detected concurrently. Tracker is still updated in frame order. Default is 1
	Workers int
	// Class label used in proof annotations and file names. Default is "persons"
	Label string
}

// DefaultOptions returns options matching defaults of the service
func DefaultOptions() Options {
	return Options{
		MaxDisappeared: 10,
		Seconds:        5,
		StartTimeSec:   0,
		SubsampleEvery: 1,
		Workers:        1,
		Label:          "persons",
	}
}

// Validate checks tuning values before session starts
func (o Options) Validate() error {
	if o.MaxDisappeared < 0 {
		return invalidConfiguration("max disappeared must be >= 0, got %d", o.MaxDisappeared)
	}
	if math.IsNaN(o.Seconds) || math.IsInf(o.Seconds, 0) || o.Seconds <= 0 {
		return invalidConfiguration("seconds must be positive, got %v", o.Seconds)
	}
	if math.IsNaN(o.StartTimeSec) || math.IsInf(o.StartTimeSec, 0) || o.StartTimeSec < 0 {
		return invalidConfiguration("start time must be >= 0, got %v", o.StartTimeSec)
	}
	if err := NewWindow(o.Seconds, DefaultFPS, o.StartTimeSec).Validate(); err != nil {
		return err
	}
	if o.SubsampleEvery < 1 {
		return invalidConfiguration("subsample every must be >= 1, got %d", o.SubsampleEvery)
	}
	if o.Workers < 1 {
		return invalidConfiguration("workers must be >= 1, got %d", o.Workers)
	}
	if o.Label == "" {
		return invalidConfiguration("label must not be empty")
	}
	return nil
}

// Window is the processed part of the stream
type Window struct {
	Seconds      float64
	FPS          float64
	StartTimeSec float64
}

// NewWindow creates window. Non-positive or NaN fps falls back to DefaultFPS
func NewWindow(seconds, fps, startTimeSec float64) Window {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		fps = DefaultFPS
	}
	return Window{
		Seconds:      seconds,
		FPS:          fps,
		StartTimeSec: startTimeSec,
	}
}

// Validate checks that frame indices of the window fit into int
func (w Window) Validate() error {
	if w.Seconds*w.FPS > maxFrames {
		return invalidConfiguration("window of %v seconds at %v fps is too long", w.Seconds, w.FPS)
	}
	if w.StartTimeSec*w.FPS > maxFrames {
		return invalidConfiguration("start time %v seconds at %v fps is too far", w.StartTimeSec, w.FPS)
	}
	if (w.StartTimeSec+w.Seconds)*w.FPS > maxFrames {
		return invalidConfiguration("window end %v seconds at %v fps is too far", w.StartTimeSec+w.Seconds, w.FPS)
	}
	return nil
}

// StartFrame returns index of the first frame in window
func (w Window) StartFrame() int {
	return int(w.StartTimeSec * w.FPS)
}

// FramesToProcess returns number of frames the cursor advances through (processed or skipped)
func (w Window) FramesToProcess() int {
	return int(w.Seconds * w.FPS)
}

// Clock returns current time. Replaced in tests
type Clock func() time.Time
