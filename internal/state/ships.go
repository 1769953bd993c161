// Package state is the in-memory world the simulation core reads snapshots from and
// hands its changes back to. Every store keeps dirty tracking so collaborators can
// broadcast per tick diffs.
package state

import (
	"errors"
	"sort"
	"sync"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/gameplay"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/radar"
)

// ErrMissingID rejects records without an identifier.
var ErrMissingID = errors.New("record id is required")

// Ship is the authoritative record of one vessel.
type Ship struct {
	Combat   combat.ShipCombatSnapshot `json:"combat"`
	Movement physics.MovementState     `json:"movement"`
	Name     string                    `json:"name,omitempty"`
	OwnerID  string                    `json:"owner_id,omitempty"`
	AI       bool                      `json:"ai"`
}

// ID returns the ship identifier.
func (s Ship) ID() string { return s.Combat.ID }

// Synced fills a missing movement state from the combat snapshot and mirrors the
// kinematics back so both views agree.
func (s Ship) Synced() Ship {
	if !(s.Movement.MaxSpeed > 0) {
		//1.- Seed the movement model from the snapshot and the hull's warp rating.
		movement := physics.NewMovementState(s.Combat.Position, s.Combat.Heading)
		movement.Speed = s.Combat.Speed
		movement.TargetSpeed = s.Combat.Speed
		if class, ok := gameplay.Lookup(s.Combat.Class); ok && class.MaxSpeed() > 0 {
			movement.MaxSpeed = class.MaxSpeed()
			if class.MaxAcceleration > 0 {
				movement.Acceleration = class.MaxAcceleration
				movement.Deceleration = class.MaxAcceleration
			}
		}
		s.Movement = movement
	}
	s.Combat.Position = s.Movement.Position
	s.Combat.Heading = s.Movement.Heading
	s.Combat.Speed = s.Movement.Speed
	return s
}

// Object converts the ship into a scannable object.
func (s Ship) Object() radar.Object {
	return radar.Object{
		ID:       s.Combat.ID,
		Kind:     radar.KindShip,
		Name:     s.Name,
		Position: s.Combat.Position,
		Class:    s.Combat.Class,
		Cloaked:  s.Combat.Cloaked,
		Hostile:  s.Combat.Hostile,
		Damage:   s.Combat.HullDamage,
		OwnerID:  s.OwnerID,
	}
}

// Observer converts the ship into the scanning side of a sweep.
func (s Ship) Observer() radar.Observer {
	return radar.Observer{ID: s.Combat.ID, Position: s.Combat.Position, Heading: s.Combat.Heading, Energy: s.Combat.Energy}
}

// ShipDiff groups updated and removed ships for a tick.
type ShipDiff struct {
	Updated []Ship   `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// ShipStore maintains the current ship records with dirty tracking.
type ShipStore struct {
	mu      sync.RWMutex
	ships   map[string]Ship
	dirty   map[string]struct{}
	removed map[string]struct{}
}

// NewShipStore constructs a thread-safe ship container.
func NewShipStore() *ShipStore {
	return &ShipStore{
		ships:   make(map[string]Ship),
		dirty:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// Upsert records or replaces the ship and flags it for the next diff.
func (s *ShipStore) Upsert(ship Ship) error {
	if ship.ID() == "" {
		return ErrMissingID
	}
	ship = ship.Synced()

	s.mu.Lock()
	//1.- Replace the stored record and mark it dirty for the diff collector.
	s.ships[ship.ID()] = ship
	delete(s.removed, ship.ID())
	s.dirty[ship.ID()] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Remove deletes the ship and marks its identifier for removal in the diff.
func (s *ShipStore) Remove(shipID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ships[shipID]; !ok {
		return false
	}
	delete(s.ships, shipID)
	delete(s.dirty, shipID)
	s.removed[shipID] = struct{}{}
	return true
}

// Get returns a copy of the stored ship.
func (s *ShipStore) Get(shipID string) (Ship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ship, ok := s.ships[shipID]
	return ship, ok
}

// ApplyPatch folds a combat patch into the stored ship.
func (s *ShipStore) ApplyPatch(patch combat.ShipPatch) (Ship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ship, ok := s.ships[patch.ShipID]
	if !ok {
		return Ship{}, false
	}
	ship.Combat = patch.Apply(ship.Combat)
	s.ships[patch.ShipID] = ship
	s.dirty[patch.ShipID] = struct{}{}
	return ship, true
}

// SetMovement replaces the kinematic state of the ship.
func (s *ShipStore) SetMovement(shipID string, movement physics.MovementState) (Ship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ship, ok := s.ships[shipID]
	if !ok {
		return Ship{}, false
	}
	ship.Movement = movement
	ship = ship.Synced()
	s.ships[shipID] = ship
	s.dirty[shipID] = struct{}{}
	return ship, true
}

// ConsumeDiff collects and clears the pending updates and removals.
func (s *ShipStore) ConsumeDiff() ShipDiff {
	s.mu.Lock()
	//1.- Snapshot the dirty and removed identifiers under lock.
	diff := ShipDiff{}
	for id := range s.dirty {
		if ship, ok := s.ships[id]; ok {
			diff.Updated = append(diff.Updated, ship)
		}
	}
	for id := range s.removed {
		diff.Removed = append(diff.Removed, id)
	}
	//2.- Reset the trackers before releasing the lock.
	s.dirty = make(map[string]struct{})
	s.removed = make(map[string]struct{})
	s.mu.Unlock()

	sortShips(diff.Updated)
	sort.Strings(diff.Removed)
	return diff
}

// Snapshot returns every stored ship ordered by identifier.
func (s *ShipStore) Snapshot() []Ship {
	s.mu.RLock()
	snapshot := make([]Ship, 0, len(s.ships))
	for _, ship := range s.ships {
		snapshot = append(snapshot, ship)
	}
	s.mu.RUnlock()
	sortShips(snapshot)
	return snapshot
}

// Len reports the number of stored ships.
func (s *ShipStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ships)
}

func sortShips(ships []Ship) {
	sort.Slice(ships, func(i, j int) bool { return ships[i].ID() < ships[j].ID() })
}
