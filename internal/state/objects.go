package state

import (
	"sort"
	"sync"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/radar"
)

// Object is anything in space that is not a ship: planets, beacons, wormholes and laid mines.
type Object struct {
	radar.Object
	// Mine carries the warhead of a laid mine.
	Mine *combat.Mine `json:"mine,omitempty"`
}

// Clone copies the mine payload so the store never shares pointers.
func (o Object) Clone() Object {
	if o.Mine != nil {
		mine := *o.Mine
		o.Mine = &mine
	}
	return o
}

// MineObject wraps a freshly laid mine into a scannable object.
func MineObject(id string, mine combat.Mine) Object {
	return Object{
		Object: radar.Object{
			ID:       id,
			Kind:     radar.KindMine,
			Name:     "mine",
			Position: mine.Position,
			Hostile:  true,
			OwnerID:  mine.OwnerID,
		},
		Mine: &mine,
	}
}

// ObjectDiff aggregates updates and removals for objects.
type ObjectDiff struct {
	Updated []Object `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// ObjectStore maintains object records with dirty tracking similar to ships.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	dirty   map[string]struct{}
	removed map[string]struct{}
}

// NewObjectStore constructs an object container with initialized maps.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects: make(map[string]Object),
		dirty:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// Upsert records or updates an object and schedules it for the next diff.
func (s *ObjectStore) Upsert(object Object) error {
	if object.ID == "" {
		return ErrMissingID
	}
	clone := object.Clone()

	s.mu.Lock()
	//1.- Store the clone and mark it dirty while clearing removal markers.
	s.objects[clone.ID] = clone
	delete(s.removed, clone.ID)
	s.dirty[clone.ID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Remove deletes an object and queues its ID for removal broadcasting.
func (s *ObjectStore) Remove(objectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectID]; !ok {
		return false
	}
	delete(s.objects, objectID)
	delete(s.dirty, objectID)
	s.removed[objectID] = struct{}{}
	return true
}

// Get returns a copy of the stored object.
func (s *ObjectStore) Get(objectID string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	object, ok := s.objects[objectID]
	return object.Clone(), ok
}

// ConsumeDiff retrieves and clears pending object updates.
func (s *ObjectStore) ConsumeDiff() ObjectDiff {
	s.mu.Lock()
	diff := ObjectDiff{}
	for id := range s.dirty {
		if object, ok := s.objects[id]; ok {
			diff.Updated = append(diff.Updated, object.Clone())
		}
	}
	for id := range s.removed {
		diff.Removed = append(diff.Removed, id)
	}
	s.dirty = make(map[string]struct{})
	s.removed = make(map[string]struct{})
	s.mu.Unlock()

	sortObjects(diff.Updated)
	sort.Strings(diff.Removed)
	return diff
}

// Snapshot returns the objects of the given kinds, or every object when no kind is given.
func (s *ObjectStore) Snapshot(kinds ...radar.ObjectKind) []Object {
	s.mu.RLock()
	snapshot := make([]Object, 0, len(s.objects))
	for _, object := range s.objects {
		if len(kinds) > 0 && !hasKind(kinds, object.Kind) {
			continue
		}
		snapshot = append(snapshot, object.Clone())
	}
	s.mu.RUnlock()
	sortObjects(snapshot)
	return snapshot
}

// Len reports the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func hasKind(kinds []radar.ObjectKind, kind radar.ObjectKind) bool {
	for _, candidate := range kinds {
		if candidate == kind {
			return true
		}
	}
	return false
}

func sortObjects(objects []Object) {
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
}
