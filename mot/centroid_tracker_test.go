package mot

import (
	"math/rand"
	"reflect"
	"testing"
)

// boxAt returns 20x40 box centered at (x, y)
func boxAt(x, y float64) BoundingBox {
	return NewBoundingBox(x-10, y-20, x+10, y+20, 0.9)
}

func TestNewCentroidTracker(t *testing.T) {
	tracker := NewCentroidTracker(3)
	if tracker.MaxDisappeared() != 3 {
		t.Errorf("Expected maxDisappeared 3, got %d", tracker.MaxDisappeared())
	}
	if tracker.Len() != 0 || tracker.NextID() != 0 {
		t.Errorf("Expected empty tracker, got %d objects and next id %d", tracker.Len(), tracker.NextID())
	}
	defaultTracker := NewCentroidTrackerDefault()
	if defaultTracker.MaxDisappeared() != 10 {
		t.Errorf("Expected default maxDisappeared 10, got %d", defaultTracker.MaxDisappeared())
	}
}

func TestUpdateRegistersInInputOrder(t *testing.T) {
	tracker := NewCentroidTracker(2)
	objects := tracker.Update([]BoundingBox{boxAt(100, 100), boxAt(300, 100), boxAt(200, 50)})
	expected := map[int]Centroid{
		0: {100, 100},
		1: {300, 100},
		2: {200, 50},
	}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
	if tracker.NextID() != 3 {
		t.Errorf("Wrong next id: %d, expected: 3", tracker.NextID())
	}
}

func TestUpdateEmptyFrameOnEmptyTracker(t *testing.T) {
	tracker := NewCentroidTracker(2)
	objects := tracker.Update(nil)
	if len(objects) != 0 {
		t.Errorf("Expected no objects, got %v", objects)
	}
	if tracker.NextID() != 0 {
		t.Errorf("Empty frame must not consume identifiers, next id: %d", tracker.NextID())
	}
}

func TestUpdateFollowsJitter(t *testing.T) {
	tracker := NewCentroidTracker(2)
	bboxesIterations := [][]BoundingBox{
		// Each nested slice represents set of bounding boxes on a single frame
		{boxAt(100, 100), boxAt(400, 300)},
		{boxAt(403, 298), boxAt(102, 101)},
		{boxAt(104, 99), boxAt(401, 305)},
		{boxAt(398, 309), boxAt(107, 103)},
	}
	var objects map[int]Centroid
	for _, iteration := range bboxesIterations {
		objects = tracker.Update(iteration)
	}
	expected := map[int]Centroid{
		0: {107, 103},
		1: {398, 309},
	}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
}

func TestDeregistrationTiming(t *testing.T) {
	tracker := NewCentroidTracker(2)
	tracker.Update([]BoundingBox{boxAt(50, 50)})

	// Unmatched for exactly 2 consecutive frames: still active
	for i := 1; i <= 2; i++ {
		objects := tracker.Update(nil)
		if _, ok := objects[0]; !ok {
			t.Fatalf("Object 0 must stay active after %d missed frames", i)
		}
		if tracker.Objects()[0].Disappeared != i {
			t.Errorf("Wrong disappeared counter: %d, expected: %d", tracker.Objects()[0].Disappeared, i)
		}
	}

	// Third miss deregisters it on this very call
	objects := tracker.Update(nil)
	if len(objects) != 0 {
		t.Fatalf("Object 0 must be deregistered on 3rd missed frame, got %v", objects)
	}

	// Similar box one frame later gets a brand new identifier
	objects = tracker.Update([]BoundingBox{boxAt(51, 50)})
	expected := map[int]Centroid{1: {51, 50}}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
}

func TestDeregistrationWhileOtherObjectsMatch(t *testing.T) {
	tracker := NewCentroidTracker(1)
	tracker.Update([]BoundingBox{boxAt(50, 50), boxAt(500, 500)})
	// Object 1 is missing for two frames while object 0 keeps being matched
	objects := tracker.Update([]BoundingBox{boxAt(52, 50)})
	if len(objects) != 2 {
		t.Fatalf("Expected 2 objects after first miss, got %v", objects)
	}
	objects = tracker.Update([]BoundingBox{boxAt(54, 50)})
	expected := map[int]Centroid{0: {54, 50}}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
}

func TestMatchResetsDisappeared(t *testing.T) {
	tracker := NewCentroidTracker(1)
	tracker.Update([]BoundingBox{boxAt(50, 50)})
	tracker.Update(nil)
	tracker.Update([]BoundingBox{boxAt(50, 52)})
	tracker.Update(nil)
	objects := tracker.Update([]BoundingBox{boxAt(50, 54)})
	expected := map[int]Centroid{0: {50, 54}}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
}

func TestGreedyOrderLeavesRowUnmatched(t *testing.T) {
	tracker := NewCentroidTracker(5)
	tracker.Update([]BoundingBox{boxAt(0, 0), boxAt(10, 0)})

	// Both objects are closest to the first centroid. Object 1 (distance 4) wins over object 0 (distance 6),
	// object 0 does not fall back to the far centroid, so the far centroid becomes a new identity
	objects := tracker.Update([]BoundingBox{boxAt(6, 0), boxAt(-100, 0)})
	expected := map[int]Centroid{
		0: {0, 0},
		1: {6, 0},
		2: {-100, 0},
	}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
	if disappeared := tracker.Objects()[0].Disappeared; disappeared != 1 {
		t.Errorf("Wrong disappeared counter for object 0: %d, expected: 1", disappeared)
	}
}

func TestEqualDistanceTieBreaksByRowOrder(t *testing.T) {
	tracker := NewCentroidTracker(5)
	tracker.Update([]BoundingBox{boxAt(0, 0), boxAt(10, 0)})
	objects := tracker.Update([]BoundingBox{boxAt(5, 0)})
	expected := map[int]Centroid{
		0: {5, 0},
		1: {10, 0},
	}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
}

func TestExcessCentroidsCreateNewIDs(t *testing.T) {
	tracker := NewCentroidTracker(5)
	tracker.Update([]BoundingBox{boxAt(100, 100)})
	objects := tracker.Update([]BoundingBox{boxAt(700, 100), boxAt(101, 100), boxAt(400, 400)})
	expected := map[int]Centroid{
		0: {101, 100},
		1: {700, 100},
		2: {400, 400},
	}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("Wrong mapping: %v, expected: %v", objects, expected)
	}
}

func TestZeroAreaBoxes(t *testing.T) {
	tracker := NewCentroidTracker(1)
	zero := NewBoundingBox(30, 30, 30, 30, 0.4)
	tracker.Update([]BoundingBox{zero})
	objects := tracker.Update([]BoundingBox{zero, zero})
	if len(objects) != 2 {
		t.Fatalf("Expected 2 objects, got %v", objects)
	}
	if objects[0] != (Centroid{30, 30}) {
		t.Errorf("Wrong centroid: %v, expected: {30 30}", objects[0])
	}
}

func TestUpdateIsDeterministic(t *testing.T) {
	frames := randomFrames(rand.New(rand.NewSource(42)), 60)
	first := NewCentroidTracker(2)
	second := NewCentroidTracker(2)
	for idx, frame := range frames {
		a := first.Update(frame)
		b := second.Update(frame)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Frame %d: runs diverged: %v vs %v", idx, a, b)
		}
	}
}

func TestDeregisteredIDsNeverReappear(t *testing.T) {
	frames := randomFrames(rand.New(rand.NewSource(7)), 200)
	tracker := NewCentroidTracker(1)
	previous := map[int]Centroid{}
	deregistered := map[int]struct{}{}
	for idx, frame := range frames {
		current := tracker.Update(frame)
		for objectID := range current {
			if _, ok := deregistered[objectID]; ok {
				t.Fatalf("Frame %d: deregistered id %d reappeared", idx, objectID)
			}
			if objectID >= tracker.NextID() {
				t.Fatalf("Frame %d: id %d is not below next id %d", idx, objectID, tracker.NextID())
			}
		}
		for objectID := range previous {
			if _, ok := current[objectID]; !ok {
				deregistered[objectID] = struct{}{}
			}
		}
		previous = current
	}
	if len(deregistered) == 0 {
		t.Error("Expected some deregistrations in random sequence")
	}
}

func TestReturnedMappingIsCopy(t *testing.T) {
	tracker := NewCentroidTracker(1)
	objects := tracker.Update([]BoundingBox{boxAt(10, 10)})
	objects[0] = Centroid{X: -1, Y: -1}
	delete(objects, 0)
	if tracker.Len() != 1 || tracker.Objects()[0].Centroid != (Centroid{10, 10}) {
		t.Errorf("Tracker state must not be affected by caller, got %v", tracker.Objects())
	}
}

// randomFrames emulates flickering detector: up to 4 objects drifting with noise, each detected with 70% chance
func randomFrames(rnd *rand.Rand, n int) [][]BoundingBox {
	anchors := []Centroid{{100, 100}, {300, 120}, {500, 300}, {150, 400}}
	frames := make([][]BoundingBox, n)
	for i := 0; i < n; i++ {
		frame := make([]BoundingBox, 0, len(anchors))
		for j := range anchors {
			anchors[j].X += rnd.Float64()*6 - 3
			anchors[j].Y += rnd.Float64()*6 - 3
			if rnd.Float64() < 0.7 {
				frame = append(frame, boxAt(anchors[j].X, anchors[j].Y))
			}
		}
		rnd.Shuffle(len(frame), func(a, b int) { frame[a], frame[b] = frame[b], frame[a] })
		frames[i] = frame
	}
	return frames
}
