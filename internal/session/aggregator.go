package session

import (
	"image"
	"time"

	"github.com/LdDl/headcount/internal/proof"
	"github.com/LdDl/headcount/mot"
	"github.com/google/uuid"
)

// Frame is a raster with its detections. Raster may be nil when only statistics are needed
type Frame struct {
	Raster image.Image
	Boxes  []mot.BoundingBox
}

// Observation is produced once per processed frame
type Observation struct {
	FrameIndex int
	Count      int
	// Tracked identifiers in ascending order
	TrackedIDs []int
}

// BestFrame is the frame with the most simultaneously tracked objects
type BestFrame struct {
	FrameIndex int
	Count      int
	Raster     image.Image
	Boxes      []mot.BoundingBox
	// Tracker id -> centroid mapping at that frame
	Objects map[int]mot.Centroid
}

// Summary is accumulated across the session
type Summary struct {
	CountsPerFrame []int
	// Lifetime union of identifiers. Never shrinks even when tracker deregisters objects
	SeenIDs      map[int]struct{}
	Observations []Observation
	Best         *BestFrame
}

// Aggregator drives the tracker over frames of one session.
// It owns the session's tracker: neither of them must be shared between sessions or goroutines.
type Aggregator struct {
	sessionID uuid.UUID
	tracker   *mot.CentroidTracker
	summary   Summary
	label     string
	clock     Clock
	failures  int
}

// AggregatorOption customizes Aggregator
type AggregatorOption func(*Aggregator)

// WithLabel sets class label used in proof annotations
func WithLabel(label string) AggregatorOption {
	return func(a *Aggregator) {
		a.label = label
	}
}

// WithClock sets time source for proof file names
func WithClock(clock Clock) AggregatorOption {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// WithSessionID sets session identifier instead of a random one
func WithSessionID(id uuid.UUID) AggregatorOption {
	return func(a *Aggregator) {
		a.sessionID = id
	}
}

// NewAggregator creates aggregator with a fresh tracker
func NewAggregator(maxDisappeared int, options ...AggregatorOption) (*Aggregator, error) {
	if maxDisappeared < 0 {
		return nil, invalidConfiguration("max disappeared must be >= 0, got %d", maxDisappeared)
	}
	a := &Aggregator{
		sessionID: uuid.New(),
		tracker:   mot.NewCentroidTracker(maxDisappeared),
		summary: Summary{
			CountsPerFrame: make([]int, 0),
			SeenIDs:        make(map[int]struct{}),
			Observations:   make([]Observation, 0),
		},
		label: DefaultOptions().Label,
		clock: time.Now,
	}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

// SessionID returns identifier of the session
func (a *Aggregator) SessionID() uuid.UUID {
	return a.sessionID
}

// Summary returns accumulated statistics. It is shared, not copied
func (a *Aggregator) Summary() *Summary {
	return &a.summary
}

// MarkDetectorFailure counts frame whose detection failed and was observed as empty
func (a *Aggregator) MarkDetectorFailure() {
	a.failures++
}

// Observe updates tracker with the frame's boxes and records observation
func (a *Aggregator) Observe(frameIndex int, frame Frame) Observation {
	objects := a.tracker.Update(frame.Boxes)
	ids := mot.SortedIDs(objects)

	observation := Observation{
		FrameIndex: frameIndex,
		Count:      len(ids),
		TrackedIDs: ids,
	}
	a.summary.Observations = append(a.summary.Observations, observation)
	a.summary.CountsPerFrame = append(a.summary.CountsPerFrame, observation.Count)
	for _, objectID := range ids {
		a.summary.SeenIDs[objectID] = struct{}{}
	}

	// Strictly greater: on ties the earlier frame is kept
	best := a.summary.Best
	if (best == nil && observation.Count > 0) || (best != nil && observation.Count > best.Count) {
		a.summary.Best = &BestFrame{
			FrameIndex: frameIndex,
			Count:      observation.Count,
			Raster:     snapshot(frame.Raster),
			Boxes:      append([]mot.BoundingBox(nil), frame.Boxes...),
			Objects:    objects,
		}
	}
	return observation
}

// Finish resolves robust count and renders proof frame, if any
func (a *Aggregator) Finish(window Window) *Result {
	summary := a.Summary()
	result := &Result{
		SessionID:             a.sessionID,
		RobustCount:           RobustCount(summary),
		CountsPerFrame:        append([]int{}, summary.CountsPerFrame...),
		UniqueLifetimeIDCount: len(summary.SeenIDs),
		Observations:          summary.Observations,
		Stats:                 computeStats(summary.CountsPerFrame, a.failures),
	}
	best := summary.Best
	if best == nil {
		return result
	}
	result.ProofRecord = &proof.Record{
		ProofImageName:        proof.FileName(a.label, best.FrameIndex, best.Count, a.clock(), a.sessionID),
		FrameIndex:            best.FrameIndex,
		DetectedInProofFrame:  best.Count,
		CountsPerFrame:        result.CountsPerFrame,
		UniqueTrackedIDsCount: result.UniqueLifetimeIDCount,
		RobustCount:           result.RobustCount,
		SecondsProcessed:      window.Seconds,
		FPSUsed:               window.FPS,
		StartTimeSec:          window.StartTimeSec,
	}
	if best.Raster != nil {
		result.ProofImage = proof.Render(best.Raster, proof.Associate(best.Boxes, best.Objects), best.Count, a.label)
	}
	return result
}

func snapshot(raster image.Image) image.Image {
	if raster == nil {
		return nil
	}
	return proof.Clone(raster)
}
