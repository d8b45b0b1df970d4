package proof

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Writer stores proof artifacts in a directory: annotated PNG, JSON sidecar and, optionally, counts chart
type Writer struct {
	dir   string
	chart bool
	// create opens artifact file for writing. Replaced in tests
	create func(path string) (io.WriteCloser, error)
}

// NewWriter creates directory if needed and returns writer for it
func NewWriter(dir string, withChart bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "can't create proof directory %s", dir)
	}
	return &Writer{
		dir:    dir,
		chart:  withChart,
		create: createFile,
	}, nil
}

// Dir returns proof directory
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores proof image and its metadata. Returns full path of the image
func (w *Writer) Write(img image.Image, record *Record) (string, error) {
	if record == nil || record.ProofImageName == "" {
		return "", errors.New("proof record without image name")
	}
	imagePath := filepath.Join(w.dir, filepath.Base(record.ProofImageName))
	if err := w.writePNG(imagePath, img); err != nil {
		return "", err
	}

	sidecarPath := filepath.Join(w.dir, SidecarName(filepath.Base(record.ProofImageName)))
	file, err := w.create(sidecarPath)
	if err != nil {
		return "", errors.Wrapf(err, "can't create proof metadata %s", sidecarPath)
	}
	if err := record.Encode(file); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", errors.Wrapf(err, "can't close proof metadata %s", sidecarPath)
	}

	if w.chart {
		chartPath := filepath.Join(w.dir, ChartName(filepath.Base(record.ProofImageName)))
		if err := WriteCountsChart(record.CountsPerFrame, proofPosition(record), "objects", chartPath); err != nil {
			return "", err
		}
	}
	return imagePath, nil
}

// proofPosition finds first processed frame with the proof frame's count
func proofPosition(record *Record) int {
	for i, c := range record.CountsPerFrame {
		if c == record.DetectedInProofFrame {
			return i
		}
	}
	return -1
}

func (w *Writer) writePNG(path string, img image.Image) error {
	file, err := w.create(path)
	if err != nil {
		return errors.Wrapf(err, "can't create proof image %s", path)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return errors.Wrapf(err, "can't encode proof image %s", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "can't close proof image %s", path)
	}
	return nil
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}
