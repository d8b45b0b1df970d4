package proof

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ChartName returns name of the counts chart stored next to the proof image
func ChartName(imageName string) string {
	return strings.TrimSuffix(imageName, ".png") + "_counts.png"
}

// WriteCountsChart plots tracked objects per processed frame and marks the proof frame
func WriteCountsChart(counts []int, proofPosition int, label, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tracked %s per processed frame", label)
	p.X.Label.Text = "Processed frame"
	p.Y.Label.Text = "Tracked objects"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(counts))
	for i, c := range counts {
		pts[i] = plotter.XY{X: float64(i), Y: float64(c)}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "can't create counts line")
	}
	line.Width = vg.Points(1)
	p.Add(line)

	if proofPosition >= 0 && proofPosition < len(counts) {
		marker, err := plotter.NewScatter(plotter.XYs{{X: float64(proofPosition), Y: float64(counts[proofPosition])}})
		if err != nil {
			return errors.Wrap(err, "can't create proof frame marker")
		}
		marker.Radius = vg.Points(4)
		p.Add(marker)
		p.Legend.Add("proof frame", marker)
	}

	if err := p.Save(8*vg.Inch, 3*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "can't save counts chart to %s", path)
	}
	return nil
}
