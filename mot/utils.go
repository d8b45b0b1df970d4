package mot

import "math"

// argmin returns index and value of the minimum element. First index wins on ties.
// Returns -1 and +Inf for empty slice.
func argmin(values []float64) (int, float64) {
	if len(values) == 0 {
		return -1, math.Inf(1)
	}
	minIdx := 0
	minValue := values[0]
	for i := 1; i < len(values); i++ {
		if values[i] < minValue {
			minValue = values[i]
			minIdx = i
		}
	}
	return minIdx, minValue
}

// distanceMatrix builds rows=objects, columns=centroids Euclidean distance matrix
func distanceMatrix(objects []*TrackedObject, centroids []Centroid) [][]float64 {
	matrix := make([][]float64, len(objects))
	for i, object := range objects {
		row := make([]float64, len(centroids))
		for j := range centroids {
			row[j] = object.DistanceTo(centroids[j])
		}
		matrix[i] = row
	}
	return matrix
}
