package session

import (
	"context"
	"image"

	"github.com/LdDl/headcount/internal/detect"
	"github.com/LdDl/headcount/internal/monitoring"
	"github.com/LdDl/headcount/mot"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FrameSource is a sequential reader of raster frames (video file, camera, ...)
type FrameSource interface {
	// FPS returns source frame rate. Non-positive value means unknown
	FPS() float64
	// Seek moves cursor to the given frame index
	Seek(frameIndex int) error
	// Read returns next frame. ok is false at the end of stream
	Read() (raster image.Image, ok bool, err error)
	Close() error
}

// SourceOpener opens a fresh frame source for a session
type SourceOpener func(ctx context.Context) (FrameSource, error)

// Runner pulls frames from source, detects objects and aggregates a session.
// Detector may be shared between runners; tracker state never is.
type Runner struct {
	open     SourceOpener
	detector detect.Detector
	options  Options
	aggOpts  []AggregatorOption
}

// NewRunner validates options and creates runner
func NewRunner(open SourceOpener, detector detect.Detector, options Options, aggregatorOptions ...AggregatorOption) (*Runner, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		return nil, invalidConfiguration("frame source is not set")
	}
	if detector == nil {
		return nil, invalidConfiguration("detector is not set")
	}
	return &Runner{
		open:     open,
		detector: detector,
		options:  options,
		aggOpts:  aggregatorOptions,
	}, nil
}

// pendingFrame is a frame waiting for detection inside a batch
type pendingFrame struct {
	index  int
	raster image.Image
	boxes  []mot.BoundingBox
	err    error
}

// Run executes one session. Each call uses its own tracker and summary
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	source, err := r.open(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "can't open frame source: %v", err)
	}
	defer source.Close()

	window := NewWindow(r.options.Seconds, source.FPS(), r.options.StartTimeSec)
	if err := window.Validate(); err != nil {
		return nil, err
	}
	startFrame := window.StartFrame()
	if err := source.Seek(startFrame); err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "can't seek to frame %d: %v", startFrame, err)
	}

	aggregatorOptions := append([]AggregatorOption{WithLabel(r.options.Label)}, r.aggOpts...)
	aggregator, err := NewAggregator(r.options.MaxDisappeared, aggregatorOptions...)
	if err != nil {
		return nil, err
	}
	logger := monitoring.Logger.WithField("session_id", aggregator.SessionID().String())
	framesToProcess := window.FramesToProcess()
	logger.WithFields(logrus.Fields{
		"frames":      framesToProcess,
		"fps":         window.FPS,
		"start_frame": startFrame,
	}).Info("session started")

	processed := 0
	frameIdx := startFrame
	batch := make([]*pendingFrame, 0, r.options.Workers)
	endOfStream := false
	for processed < framesToProcess && !endOfStream {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "session cancelled")
		}
		batch = batch[:0]
		for len(batch) < r.options.Workers && processed < framesToProcess {
			raster, ok, err := source.Read()
			if err != nil {
				if processed == 0 {
					return nil, errors.Wrapf(ErrSourceUnavailable, "can't read frame %d: %v", frameIdx, err)
				}
				logger.WithError(err).WithField("frame_index", frameIdx).Warn("frame read failed, closing window early")
				endOfStream = true
				break
			}
			if !ok {
				endOfStream = true
				break
			}
			// Skipped frames advance the cursor only
			if processed%r.options.SubsampleEvery == 0 {
				batch = append(batch, &pendingFrame{index: frameIdx, raster: raster})
			}
			processed++
			frameIdx++
		}
		if err := r.detectBatch(ctx, batch); err != nil {
			return nil, errors.Wrap(err, "session cancelled")
		}
		// Tracker updates are not commutative: strictly in frame order
		for _, pending := range batch {
			if pending.err != nil {
				logger.WithError(pending.err).WithField("frame_index", pending.index).Warn("detection failed, treating frame as empty")
				aggregator.MarkDetectorFailure()
			}
			aggregator.Observe(pending.index, Frame{Raster: pending.raster, Boxes: pending.boxes})
		}
	}

	result := aggregator.Finish(window)
	logger.WithFields(logrus.Fields{
		"robust_count":      result.RobustCount,
		"unique_ids":        result.UniqueLifetimeIDCount,
		"frames_processed":  result.Stats.FramesProcessed,
		"mean_count":        result.Stats.MeanCount,
		"detector_failures": result.Stats.DetectorFailures,
		"has_proof":         result.ProofRecord != nil,
	}).Info("session finished")
	return result, nil
}

// detectBatch runs detection of the batch concurrently. Per-frame detector errors are kept in the frame,
// only context cancellation aborts the batch
func (r *Runner) detectBatch(ctx context.Context, batch []*pendingFrame) error {
	if len(batch) == 1 {
		batch[0].boxes, batch[0].err = r.detector.Detect(ctx, batch[0].raster)
		if batch[0].err != nil {
			batch[0].boxes = nil
		}
		return ctx.Err()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, pending := range batch {
		pending := pending
		group.Go(func() error {
			pending.boxes, pending.err = r.detector.Detect(groupCtx, pending.raster)
			if pending.err != nil {
				pending.boxes = nil
			}
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
