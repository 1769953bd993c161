package engine

import (
	"context"
	"fmt"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/gameplay"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/radar"
	"github.com/talktojer/ge-sub000/internal/state"
)

const (
	// CybertronOwner owns every ship the AI fleet flies.
	CybertronOwner   = "cybertron"
	fullShieldCharge = 100.0
)

// snapshot is one consistent read of the world taken at the start of a tick or command.
type snapshot struct {
	ships   []state.Ship
	byID    map[string]state.Ship
	objects []state.Object
}

func (c *Core) read(ctx context.Context) (snapshot, error) {
	ships, err := c.world.Ships(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("read ships: %w", err)
	}
	objects, err := c.world.Objects(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("read objects: %w", err)
	}
	byID := make(map[string]state.Ship, len(ships))
	for _, ship := range ships {
		byID[ship.ID()] = ship
	}
	return snapshot{ships: ships, byID: byID, objects: objects}, nil
}

// ship looks up one record of the snapshot.
func (s snapshot) ship(shipID string) (state.Ship, error) {
	ship, ok := s.byID[shipID]
	if !ok {
		return state.Ship{}, fmt.Errorf("%w: %q", ErrUnknownShip, shipID)
	}
	return ship, nil
}

// scannable lists every object the observer could pick up: other live ships plus planets,
// beacons, wormholes and mines.
func (s snapshot) scannable(observerID string, relative func(state.Ship) radar.Object) []radar.Object {
	objects := make([]radar.Object, 0, len(s.ships)+len(s.objects))
	for _, ship := range s.ships {
		if ship.ID() == observerID || ship.Combat.Destroyed() {
			continue
		}
		if relative != nil {
			objects = append(objects, relative(ship))
			continue
		}
		objects = append(objects, ship.Object())
	}
	for _, object := range s.objects {
		objects = append(objects, object.Object)
	}
	return objects
}

// cybertronView marks every player ship hostile so the fleet treats players as enemies.
func cybertronView(ship state.Ship) radar.Object {
	object := ship.Object()
	if !ship.AI {
		object.Hostile = true
	}
	return object
}

// shipFromAI builds the world record of an AI ship with the armament of its hull.
func shipFromAI(ship ai.Ship) state.Ship {
	snapshot := combat.ShipCombatSnapshot{
		ID:           ship.ID,
		Class:        ship.Class,
		Position:     ship.Position,
		Heading:      ship.Heading,
		Speed:        ship.Speed,
		Energy:       ship.Energy,
		HullDamage:   ship.Damage,
		ShieldCharge: fullShieldCharge,
		ShieldsUp:    true,
		Hostile:      ship.Family == ai.FamilyCybertron,
	}
	name := string(ship.Family)
	if class, ok := gameplay.Lookup(ship.Class); ok {
		name = class.Name
		snapshot.ShieldType = class.MaxShields
		snapshot.PhaserStrength = float64(class.MaxPhasers)
		snapshot.Torpedoes = class.MaxTorpedoes
		snapshot.Missiles = class.MaxMissiles
		snapshot.DamageFactor = class.DamageFactor
		if class.HasDecoy {
			snapshot.Decoys = 1
		}
		if class.HasMine {
			snapshot.Mines = 1
		}
	}
	record := state.Ship{Combat: snapshot, Name: name, OwnerID: CybertronOwner, AI: true}
	record = record.Synced()
	record.Movement = physics.Rotate(record.Movement, ship.Heading)
	return record
}

// observation converts the world record into what the AI manager mirrors before deciding.
func observation(ship state.Ship, contacts []radar.ScanResult) ai.Observation {
	return ai.Observation{
		Position: ship.Combat.Position,
		Heading:  ship.Combat.Heading,
		Speed:    ship.Combat.Speed,
		Energy:   ship.Combat.Energy,
		Damage:   ship.Combat.HullDamage,
		Shields:  int(ship.Combat.ShieldCharge),
		Contacts: contacts,
	}
}
