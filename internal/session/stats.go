package session

import (
	"gonum.org/v1/gonum/stat"
)

// Stats describes per-frame counts of a session
type Stats struct {
	FramesProcessed  int
	MaxCount         int
	MeanCount        float64
	StdDevCount      float64
	DetectorFailures int
}

func computeStats(counts []int, failures int) Stats {
	s := Stats{
		FramesProcessed:  len(counts),
		DetectorFailures: failures,
	}
	if len(counts) == 0 {
		return s
	}
	values := make([]float64, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
		if c > s.MaxCount {
			s.MaxCount = c
		}
	}
	s.MeanCount = stat.Mean(values, nil)
	if len(values) > 1 {
		s.StdDevCount = stat.StdDev(values, nil)
	}
	return s
}
