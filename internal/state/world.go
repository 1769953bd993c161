package state

import (
	"context"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/radar"
)

// Movement is a new kinematic state computed for one ship.
type Movement struct {
	ShipID string                `json:"ship_id"`
	State  physics.MovementState `json:"state"`
}

// Changes is everything one tick or one action hands back to the world.
type Changes struct {
	Spawned        []Ship             `json:"spawned,omitempty"`
	Movements      []Movement         `json:"movements,omitempty"`
	Patches        []combat.ShipPatch `json:"patches,omitempty"`
	Removed        []string           `json:"removed,omitempty"`
	Objects        []Object           `json:"objects,omitempty"`
	ObjectsRemoved []string           `json:"objects_removed,omitempty"`
	Events         []events.Event     `json:"events,omitempty"`
}

// Patch queues a non empty combat patch.
func (c *Changes) Patch(patches ...combat.ShipPatch) {
	for _, patch := range patches {
		if patch.ShipID == "" || patch.Empty() {
			continue
		}
		c.Patches = append(c.Patches, patch)
	}
}

// Move queues a new movement state.
func (c *Changes) Move(shipID string, movement physics.MovementState) {
	c.Movements = append(c.Movements, Movement{ShipID: shipID, State: movement})
}

// Emit queues events.
func (c *Changes) Emit(batch ...events.Event) {
	c.Events = append(c.Events, batch...)
}

// Merge appends another change set after this one.
func (c *Changes) Merge(other Changes) {
	c.Spawned = append(c.Spawned, other.Spawned...)
	c.Movements = append(c.Movements, other.Movements...)
	c.Patches = append(c.Patches, other.Patches...)
	c.Removed = append(c.Removed, other.Removed...)
	c.Objects = append(c.Objects, other.Objects...)
	c.ObjectsRemoved = append(c.ObjectsRemoved, other.ObjectsRemoved...)
	c.Events = append(c.Events, other.Events...)
}

// Empty reports whether the change set carries nothing.
func (c Changes) Empty() bool {
	return len(c.Spawned) == 0 && len(c.Movements) == 0 && len(c.Patches) == 0 && len(c.Removed) == 0 &&
		len(c.Objects) == 0 && len(c.ObjectsRemoved) == 0 && len(c.Events) == 0
}

// TickDiff collates all state deltas produced since the last diff.
type TickDiff struct {
	Ships   ShipDiff   `json:"ships"`
	Objects ObjectDiff `json:"objects"`
	Events  EventDiff  `json:"events"`
}

// HasChanges reports whether the diff contains any modifications worth broadcasting.
func (d TickDiff) HasChanges() bool {
	//1.- Check each sub diff for non-empty updates or removals.
	if len(d.Ships.Updated) > 0 || len(d.Ships.Removed) > 0 {
		return true
	}
	if len(d.Objects.Updated) > 0 || len(d.Objects.Removed) > 0 {
		return true
	}
	return len(d.Events.Events) > 0
}

// Publisher forwards events as soon as the world accepts them.
type Publisher interface {
	PublishAll(batch []events.Event) error
}

// World holds the authoritative state containers for the simulation.
type World struct {
	ships     *ShipStore
	objects   *ObjectStore
	events    *EventStore
	publisher Publisher
	logger    *logging.Logger
}

// Option customises the world.
type Option func(*World)

// WithPublisher forwards every applied event instead of buffering it for the diff.
func WithPublisher(publisher Publisher) Option {
	return func(w *World) {
		if publisher != nil {
			w.publisher = publisher
		}
	}
}

// WithLogger routes world logs to the provided logger.
func WithLogger(logger *logging.Logger) Option {
	return func(w *World) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorld constructs the world containers.
func NewWorld(opts ...Option) *World {
	world := &World{
		ships:   NewShipStore(),
		objects: NewObjectStore(),
		events:  NewEventStore(),
		logger:  logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(world)
		}
	}
	return world
}

// Ships returns every ship snapshot ordered by identifier.
func (w *World) Ships(ctx context.Context) ([]Ship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.ships.Snapshot(), nil
}

// Planets returns every planet.
func (w *World) Planets(ctx context.Context) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.objects.Snapshot(radar.KindPlanet), nil
}

// Objects returns every non ship object, mines included.
func (w *World) Objects(ctx context.Context) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.objects.Snapshot(), nil
}

// Ship returns a single ship.
func (w *World) Ship(shipID string) (Ship, bool) {
	return w.ships.Get(shipID)
}

// UpsertShip registers or replaces a ship record.
func (w *World) UpsertShip(ship Ship) error {
	return w.ships.Upsert(ship)
}

// RemoveShip deletes a ship record.
func (w *World) RemoveShip(shipID string) bool {
	return w.ships.Remove(shipID)
}

// UpsertObject registers or replaces a planet, beacon, wormhole or mine.
func (w *World) UpsertObject(object Object) error {
	return w.objects.Upsert(object)
}

// RemoveObject deletes an object record.
func (w *World) RemoveObject(objectID string) bool {
	return w.objects.Remove(objectID)
}

// Apply folds a change set into the stores. Changes that reference ships removed in the
// meantime are skipped, the core treats cleanup as eventually consistent.
func (w *World) Apply(ctx context.Context, changes Changes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	//1.- Spawns first so the same change set can move and patch them.
	for _, ship := range changes.Spawned {
		if err := w.ships.Upsert(ship); err != nil {
			w.logger.Error("spawn rejected", logging.Error(err))
		}
	}
	skipped := 0
	for _, movement := range changes.Movements {
		if _, ok := w.ships.SetMovement(movement.ShipID, movement.State); !ok {
			skipped++
		}
	}
	for _, patch := range changes.Patches {
		if _, ok := w.ships.ApplyPatch(patch); !ok {
			skipped++
		}
	}
	for _, shipID := range changes.Removed {
		w.ships.Remove(shipID)
	}
	//2.- Objects follow ships so a mine laid and detonated in one tick ends up removed.
	for _, object := range changes.Objects {
		if err := w.objects.Upsert(object); err != nil {
			w.logger.Error("object rejected", logging.Error(err))
		}
	}
	for _, objectID := range changes.ObjectsRemoved {
		w.objects.Remove(objectID)
	}
	if skipped > 0 {
		w.logger.Info("changes for missing ships skipped", logging.Int("skipped", skipped))
	}
	w.publish(changes.Events)
	return nil
}

func (w *World) publish(batch []events.Event) {
	if len(batch) == 0 {
		return
	}
	if w.publisher == nil {
		w.events.Add(batch...)
		return
	}
	//1.- Keep undeliverable events for the diff so nothing is lost.
	if err := w.publisher.PublishAll(batch); err != nil {
		w.logger.Error("event publish failed", logging.Error(err))
		w.events.Add(batch...)
	}
}

// ConsumeDiff collects the diff from each store.
func (w *World) ConsumeDiff() TickDiff {
	return TickDiff{
		Ships:   w.ships.ConsumeDiff(),
		Objects: w.objects.ConsumeDiff(),
		Events:  w.events.ConsumeDiff(),
	}
}

// Snapshot captures the entire world for recovery or debugging without consuming the diff.
func (w *World) Snapshot() TickDiff {
	return TickDiff{
		Ships:   ShipDiff{Updated: w.ships.Snapshot()},
		Objects: ObjectDiff{Updated: w.objects.Snapshot()},
	}
}

// Counts reports the number of ships and objects.
func (w *World) Counts() (ships, objects int) {
	return w.ships.Len(), w.objects.Len()
}
