package api

// Decision is verdict on the counted number against the reference one
type Decision string

const (
	Accepted Decision = "ACCEPTED"
	Rejected Decision = "REJECTED"
)

// Decide accepts count when it differs from reference by at most tolerance
func Decide(count, reference, tolerance int) Decision {
	diff := count - reference
	if diff < 0 {
		diff = -diff
	}
	if diff <= tolerance {
		return Accepted
	}
	return Rejected
}
