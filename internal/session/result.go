package session

import (
	"image"

	"github.com/LdDl/headcount/internal/proof"
	"github.com/google/uuid"
)

// Result of a counting session
type Result struct {
	SessionID             uuid.UUID
	RobustCount           int
	CountsPerFrame        []int
	UniqueLifetimeIDCount int
	// Annotated proof frame. Nil when no frame had any tracked object
	ProofImage image.Image
	// Proof metadata. Nil when no frame had any tracked object
	ProofRecord  *proof.Record
	Observations []Observation
	Stats        Stats
}

// RunFrames runs a session over already detected frames. Frame indices start at window.StartFrame()
func RunFrames(frames []Frame, maxDisappeared int, window Window, options ...AggregatorOption) (*Result, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	aggregator, err := NewAggregator(maxDisappeared, options...)
	if err != nil {
		return nil, err
	}
	start := window.StartFrame()
	for i := range frames {
		aggregator.Observe(start+i, frames[i])
	}
	return aggregator.Finish(window), nil
}
