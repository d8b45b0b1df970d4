package mot

// TrackedObject is an identity held by CentroidTracker.
// ID is assigned once and never reused within a tracker instance.
type TrackedObject struct {
	ID          int
	Centroid    Centroid
	Disappeared int
}

func newTrackedObject(id int, centroid Centroid) *TrackedObject {
	return &TrackedObject{
		ID:          id,
		Centroid:    centroid,
		Disappeared: 0,
	}
}

// GetID returns object's indentifier
func (object *TrackedObject) GetID() int {
	return object.ID
}

// GetCenter returns object's current centroid
func (object *TrackedObject) GetCenter() Centroid {
	return object.Centroid
}

// GetNoMatchTimes returns number of consecutive frames object has not been matched
func (object *TrackedObject) GetNoMatchTimes() int {
	return object.Disappeared
}

// IncNoMatch increases object's no match times
func (object *TrackedObject) IncNoMatch() {
	object.Disappeared++
}

// ResetNoMatch resets object's no match times
func (object *TrackedObject) ResetNoMatch() {
	object.Disappeared = 0
}

// Update moves object to the matched centroid and marks it as seen
func (object *TrackedObject) Update(centroid Centroid) {
	object.Centroid = centroid
	object.ResetNoMatch()
}

// DistanceTo returns distance from object's centroid to given one
func (object *TrackedObject) DistanceTo(centroid Centroid) float64 {
	return euclideanDistance(object.Centroid, centroid)
}
