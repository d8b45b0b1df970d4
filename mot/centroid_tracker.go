package mot

import (
	"sort"
)

// CentroidTracker is greedy nearest-centroid Multi-object tracker (MOT).
//
// Existing objects are matched with new centroids in ascending order of each object's
// closest distance. This is intentionally greedy and not a minimum-cost assignment:
// under ambiguous crossings the object with the clearest match keeps its identity.
//
// Tracker state is not safe for concurrent use: Update must be called once per frame, in frame order.
type CentroidTracker struct {
	// Main storage (identity table)
	objects map[int]*TrackedObject
	// Next identifier to assign. Identifiers are never reused
	nextID int
	// Max number of consecutive frames an object could stay unmatched. Default is 10
	maxDisappeared int
}

// NewCentroidTrackerDefault creates default instance of CentroidTracker
func NewCentroidTrackerDefault() *CentroidTracker {
	return NewCentroidTracker(10)
}

// NewCentroidTracker creates new instance of CentroidTracker.
// Negative maxDisappeared is treated as zero.
func NewCentroidTracker(maxDisappeared int) *CentroidTracker {
	if maxDisappeared < 0 {
		maxDisappeared = 0
	}
	return &CentroidTracker{
		objects:        make(map[int]*TrackedObject),
		nextID:         0,
		maxDisappeared: maxDisappeared,
	}
}

// MaxDisappeared returns deregistration threshold
func (tracker *CentroidTracker) MaxDisappeared() int {
	return tracker.maxDisappeared
}

// NextID returns identifier which will be assigned to the next registered object
func (tracker *CentroidTracker) NextID() int {
	return tracker.nextID
}

// Len returns number of objects in identity table
func (tracker *CentroidTracker) Len() int {
	return len(tracker.objects)
}

// Objects returns copy of identity table sorted by identifier
func (tracker *CentroidTracker) Objects() []TrackedObject {
	objects := make([]TrackedObject, 0, len(tracker.objects))
	for _, object := range tracker.sortedObjects() {
		objects = append(objects, *object)
	}
	return objects
}

// Update consumes boxes of the next frame and returns current id -> centroid mapping.
// Returned map is a copy and could be retained by caller.
func (tracker *CentroidTracker) Update(boxes []BoundingBox) map[int]Centroid {
	inputCentroids := Centroids(boxes)

	if len(tracker.objects) == 0 {
		for i := range inputCentroids {
			tracker.register(inputCentroids[i])
		}
		return tracker.mapping()
	}

	if len(inputCentroids) == 0 {
		for _, object := range tracker.sortedObjects() {
			tracker.markMissed(object)
		}
		return tracker.mapping()
	}

	// Rows are existing objects in registration order, columns are new centroids in input order
	objects := tracker.sortedObjects()
	distances := distanceMatrix(objects, inputCentroids)

	priorityQueue := make(rowHeap, 0, len(objects))
	for row := range distances {
		col, minDistance := argmin(distances[row])
		priorityQueue.Push(&rowCandidate{
			row:      row,
			col:      col,
			distance: minDistance,
		})
	}

	// We need to prevent double usage of both objects and centroids
	usedRows := make(map[int]struct{}, len(objects))
	usedCols := make(map[int]struct{}, len(inputCentroids))

	for priorityQueue.Len() > 0 {
		candidate := priorityQueue.Pop()
		if _, ok := usedRows[candidate.row]; ok {
			continue
		}
		// Column is the row's argmin over all centroids. If it is taken already, row stays unmatched:
		// no fallback to the second best column
		if _, ok := usedCols[candidate.col]; ok {
			continue
		}
		objects[candidate.row].Update(inputCentroids[candidate.col])
		usedRows[candidate.row] = struct{}{}
		usedCols[candidate.col] = struct{}{}
	}

	for row, object := range objects {
		if _, ok := usedRows[row]; ok {
			continue
		}
		tracker.markMissed(object)
	}

	for col := range inputCentroids {
		if _, ok := usedCols[col]; ok {
			continue
		}
		tracker.register(inputCentroids[col])
	}

	return tracker.mapping()
}

func (tracker *CentroidTracker) register(centroid Centroid) {
	tracker.objects[tracker.nextID] = newTrackedObject(tracker.nextID, centroid)
	tracker.nextID++
}

// markMissed increments no match counter and removes object if it was not found for too long
func (tracker *CentroidTracker) markMissed(object *TrackedObject) {
	object.IncNoMatch()
	if object.GetNoMatchTimes() > tracker.maxDisappeared {
		delete(tracker.objects, object.GetID())
	}
}

func (tracker *CentroidTracker) sortedObjects() []*TrackedObject {
	objects := make([]*TrackedObject, 0, len(tracker.objects))
	for _, object := range tracker.objects {
		objects = append(objects, object)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].ID < objects[j].ID
	})
	return objects
}

func (tracker *CentroidTracker) mapping() map[int]Centroid {
	result := make(map[int]Centroid, len(tracker.objects))
	for objectID, object := range tracker.objects {
		result[objectID] = object.GetCenter()
	}
	return result
}

// SortedIDs returns keys of id -> centroid mapping in ascending order
func SortedIDs(mapping map[int]Centroid) []int {
	ids := make([]int, 0, len(mapping))
	for objectID := range mapping {
		ids = append(ids, objectID)
	}
	sort.Ints(ids)
	return ids
}
