package session

import "sort"

// RobustCount prefers number of lifetime unique identities. When tracker never assigned any identity
// it falls back to truncated median of per-frame counts, and to zero for an empty session.
func RobustCount(summary *Summary) int {
	if summary == nil {
		return 0
	}
	if len(summary.SeenIDs) > 0 {
		return len(summary.SeenIDs)
	}
	return Median(summary.CountsPerFrame)
}

// Median returns integer median truncated toward zero. For even length it is the mean of two middle values.
// Returns 0 for empty input.
func Median(counts []int) int {
	if len(counts) == 0 {
		return 0
	}
	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	// Go integer division truncates toward zero
	return (sorted[mid-1] + sorted[mid]) / 2
}
