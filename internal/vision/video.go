package vision

import (
	"context"
	"image"

	"github.com/LdDl/headcount/internal/session"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoSource reads frames of a video file (or any URI OpenCV can open) one by one
type VideoSource struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// OpenVideo opens video for sequential reading
func OpenVideo(path string) (*VideoSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open video %s", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("video %s is not opened", path)
	}
	return &VideoSource{
		capture: capture,
		frame:   gocv.NewMat(),
	}, nil
}

// Opener returns session.SourceOpener which opens a fresh VideoSource for every session
func Opener(path string) session.SourceOpener {
	return func(ctx context.Context) (session.FrameSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return OpenVideo(path)
	}
}

// FPS returns frame rate reported by container. Zero when unknown
func (v *VideoSource) FPS() float64 {
	return v.capture.Get(gocv.VideoCaptureFPS)
}

// Seek moves cursor to the given frame index
func (v *VideoSource) Seek(frameIndex int) error {
	if frameIndex < 0 {
		return errors.Errorf("negative frame index %d", frameIndex)
	}
	if frameIndex == 0 {
		return nil
	}
	v.capture.Set(gocv.VideoCapturePosFrames, float64(frameIndex))
	return nil
}

// Read decodes next frame. ok is false at the end of stream
func (v *VideoSource) Read() (image.Image, bool, error) {
	if ok := v.capture.Read(&v.frame); !ok || v.frame.Empty() {
		return nil, false, nil
	}
	// ToImage copies pixels, so internal buffer could be reused for the next frame
	raster, err := v.frame.ToImage()
	if err != nil {
		return nil, false, errors.Wrap(err, "can't convert frame to image")
	}
	return raster, true, nil
}

// Close releases decoder
func (v *VideoSource) Close() error {
	if err := v.frame.Close(); err != nil {
		return errors.Wrap(err, "can't release frame buffer")
	}
	return v.capture.Close()
}
