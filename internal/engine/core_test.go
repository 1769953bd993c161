package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/simulation"
	"github.com/talktojer/ge-sub000/internal/state"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestCore(t *testing.T, opts ...Option) (*Core, *state.World) {
	t.Helper()
	logger := logging.NewTestLogger()
	world := state.NewWorld(state.WithLogger(logger))
	base := []Option{
		WithSeed("engine-test"),
		WithLogger(logger),
		WithClock(func() time.Time { return epoch }),
	}
	core, err := New(world, world, append(base, opts...)...)
	require.NoError(t, err)
	return core, world
}

func playerShip(id string, x, y float64) state.Ship {
	return state.Ship{
		Combat: combat.ShipCombatSnapshot{
			ID:             id,
			Class:          1,
			Position:       galaxy.Coordinate{X: x, Y: y},
			Energy:         10000,
			PhaserStrength: 10,
			Torpedoes:      1,
			Decoys:         1,
			Mines:          1,
		},
		Name:    id,
		OwnerID: "pilot-" + id,
	}
}

func addPlayers(t *testing.T, core *Core, ships ...state.Ship) {
	t.Helper()
	for _, ship := range ships {
		require.NoError(t, core.UpsertShip(context.Background(), ship))
	}
}

func mustShip(t *testing.T, world *state.World, id string) state.Ship {
	t.Helper()
	ship, ok := world.Ship(id)
	require.True(t, ok, "ship %s missing", id)
	return ship
}

func eventsOf(world *state.World, kind events.Kind) []events.Event {
	var matched []events.Event
	for _, event := range world.ConsumeDiff().Events.Events {
		if event.Kind == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

func movementTick(number uint64) simulation.Tick {
	return simulation.Tick{Loop: simulation.LoopMovement, Number: number, Started: epoch, Interval: 100 * time.Millisecond}
}

func TestNewRequiresCollaborators(t *testing.T) {
	world := state.NewWorld()
	_, err := New(nil, world)
	require.Error(t, err)
	_, err = New(world, nil)
	require.Error(t, err)
}

func TestNavigateValidatesAgainstClass(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0))

	result, err := core.Navigate(ctx, NavigationRequest{ShipID: "alpha", Command: "warp", Warp: 5})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 5000.0, mustShip(t, world, "alpha").Movement.TargetSpeed)
	assert.Len(t, eventsOf(world, events.KindNavigation), 1)

	result, err = core.Navigate(ctx, NavigationRequest{ShipID: "alpha", Command: "warp", Warp: 11})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid warp factor", result.Message)
	assert.Equal(t, 5000.0, mustShip(t, world, "alpha").Movement.TargetSpeed, "rejected commands leave the ship untouched")

	result, err = core.Navigate(ctx, NavigationRequest{ShipID: "alpha", Command: "impulse", Impulse: 0})
	require.NoError(t, err)
	assert.Equal(t, "Invalid impulse power", result.Message)

	result, err = core.Navigate(ctx, NavigationRequest{ShipID: "alpha", Command: "fly"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown navigation command: fly", result.Message)

	result, err = core.Navigate(ctx, NavigationRequest{ShipID: "ghost", Command: "stop"})
	require.NoError(t, err)
	assert.Equal(t, "Ship not found", result.Message)
}

func TestCombatOpensBattleOnFirstShot(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0))

	result, err := core.Combat(ctx, CombatRequest{ShipID: "alpha", TargetID: "bravo", Action: "fire_phasers"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	require.NotNil(t, result.Battle)
	assert.Equal(t, 1, core.Battles().Len())

	alpha := mustShip(t, world, "alpha")
	bravo := mustShip(t, world, "bravo")
	assert.True(t, alpha.Combat.Hostile)
	assert.True(t, bravo.Combat.Hostile)
	assert.Equal(t, 9900.0, alpha.Combat.Energy, "phasers cost 100 energy")
	assert.NotEmpty(t, eventsOf(world, events.KindCombat))

	//1.- The defender answering fire joins the same battle.
	result, err = core.Combat(ctx, CombatRequest{ShipID: "bravo", TargetID: "alpha", Action: "fire_phasers"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, core.Battles().Len())

	status, err := core.Status(ctx, "alpha")
	require.NoError(t, err)
	assert.NotNil(t, status.Battle)

	result, err = core.Combat(ctx, CombatRequest{ShipID: "alpha", TargetID: "bravo", Action: "fire_lasers"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Unknown combat action: fire_lasers", result.Message)
}

func TestCombatRejectsTargetsOutOfRange(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("far", 100, 0))

	result, err := core.Combat(ctx, CombatRequest{ShipID: "alpha", TargetID: "far", Action: "fire_phasers"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Target out of combat range", result.Message)
	assert.Zero(t, core.Battles().Len())
	assert.Equal(t, 10000.0, mustShip(t, world, "alpha").Combat.Energy)
}

func TestRejectedOpeningShotLeavesNoBattle(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	drained := playerShip("alpha", 0, 0)
	drained.Combat.Energy = 10
	addPlayers(t, core, drained, playerShip("bravo", 1, 0))

	result, err := core.Combat(ctx, CombatRequest{ShipID: "alpha", TargetID: "bravo", Action: "fire_phasers"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Insufficient energy for phasers", result.Message)
	assert.Nil(t, result.Battle)
	assert.Zero(t, core.Battles().Len())
	assert.False(t, mustShip(t, world, "alpha").Combat.Hostile)
	assert.False(t, mustShip(t, world, "bravo").Combat.Hostile)

	//1.- A valid shot afterwards opens the battle normally.
	result, err = core.Combat(ctx, CombatRequest{ShipID: "bravo", TargetID: "alpha", Action: "fire_phasers"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, core.Battles().Len())
}

func TestLaidMineTriggersOnClosestShip(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("layer", 0, 0), playerShip("victim", 0.5, 0))

	result, err := core.Combat(ctx, CombatRequest{ShipID: "layer", Action: "lay_mine"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	objects, err := world.Objects(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.NotNil(t, objects[0].Mine)
	assert.Equal(t, 0, mustShip(t, world, "layer").Combat.Mines)

	_, err = core.processMovement(ctx, movementTick(1))
	require.NoError(t, err)

	objects, err = world.Objects(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects, "a triggered mine is consumed")
	assert.True(t, mustShip(t, world, "victim").Combat.HullDamage > 0)
	assert.Zero(t, mustShip(t, world, "layer").Combat.HullDamage, "mines never hit their owner")
}

func TestMovementIsolatesFailingShip(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 10, 0), playerShip("charlie", 20, 0))
	for _, id := range []string{"alpha", "bravo", "charlie"} {
		result, err := core.Navigate(ctx, NavigationRequest{ShipID: id, Command: "warp", Warp: 5})
		require.NoError(t, err)
		require.True(t, result.Success, result.Message)
	}
	broken := mustShip(t, world, "bravo").Movement.Position
	core.step = func(movement physics.MovementState, boundary galaxy.Boundary) physics.MovementState {
		if movement.Position == broken {
			panic("corrupt helm state")
		}
		return physics.Step(movement, boundary)
	}

	summary, err := core.processMovement(ctx, movementTick(1))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Errors)
	assert.Positive(t, mustShip(t, world, "alpha").Movement.Speed, "peers keep moving")
	assert.Positive(t, mustShip(t, world, "charlie").Movement.Speed, "peers keep moving")
	assert.Zero(t, mustShip(t, world, "bravo").Movement.Speed)
}

func TestScanChargesEnergy(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	drained := playerShip("drained", 2, 0)
	drained.Combat.Energy = 5
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0), drained)

	response, err := core.Scan(ctx, ScanRequest{ShipID: "alpha", ScannerType: "short_range"})
	require.NoError(t, err)
	require.True(t, response.Success, response.Message)
	require.NotNil(t, response.Report)
	assert.Equal(t, 9990.0, mustShip(t, world, "alpha").Combat.Energy)

	response, err = core.Scan(ctx, ScanRequest{ShipID: "drained", ScannerType: "short_range"})
	require.NoError(t, err)
	assert.Equal(t, "Insufficient energy for scan", response.Message)

	response, err = core.Scan(ctx, ScanRequest{ShipID: "alpha", ScannerType: "sonar"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown scanner type: sonar", response.Message)
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0), playerShip("far", 20, 0))

	result, err := core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo", Operation: LockAcquire})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, core.Locks().Len())

	result, err = core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo"})
	require.NoError(t, err)
	assert.Equal(t, "Already acquiring lock on this target", result.Message)

	result, err = core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "far"})
	require.NoError(t, err)
	assert.Equal(t, "Target out of lock range", result.Message)

	result, err = core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo", Operation: LockStatus})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Lock)

	result, err = core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo", Operation: LockBreak})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, core.Locks().Len())
	assert.Len(t, eventsOf(world, events.KindLock), 2)

	result, err = core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo", Operation: "hold"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown lock operation: hold", result.Message)
}

func TestSelfDestructAbortAndDetonation(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0))

	armed, err := core.SelfDestruct(ctx, SelfDestructRequest{ShipID: "alpha", Operation: SelfDestructInitiate})
	require.NoError(t, err)
	require.True(t, armed.Success, armed.Message)
	require.NotZero(t, armed.AbortCode)

	status, err := core.SelfDestruct(ctx, SelfDestructRequest{ShipID: "alpha", Operation: SelfDestructStatus})
	require.NoError(t, err)
	require.NotNil(t, status.State)
	assert.Zero(t, status.State.AbortCode, "status never leaks the abort code")

	rejected, err := core.SelfDestruct(ctx, SelfDestructRequest{ShipID: "alpha", Operation: SelfDestructAbort, AbortCode: armed.AbortCode + 1})
	require.NoError(t, err)
	assert.Equal(t, "Invalid abort code", rejected.Message)

	aborted, err := core.SelfDestruct(ctx, SelfDestructRequest{ShipID: "alpha", Operation: SelfDestructAbort, AbortCode: armed.AbortCode})
	require.NoError(t, err)
	assert.True(t, aborted.Success)
	assert.Zero(t, core.Destructs().Len())

	//1.- Re-arm and let the countdown run out on the movement loop.
	armed, err = core.SelfDestruct(ctx, SelfDestructRequest{ShipID: "alpha", Operation: SelfDestructInitiate})
	require.NoError(t, err)
	require.True(t, armed.Success)
	world.ConsumeDiff()
	for tick := uint64(1); tick <= 10; tick++ {
		_, err := core.processMovement(ctx, movementTick(tick))
		require.NoError(t, err)
	}

	assert.True(t, mustShip(t, world, "alpha").Combat.Destroyed())
	assert.True(t, mustShip(t, world, "bravo").Combat.HullDamage > 0, "bravo sits inside the blast radius")
	assert.Len(t, eventsOf(world, events.KindDetonation), 1)
	assert.Zero(t, core.Destructs().Len())
}

func TestDisplayIsReadOnly(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0))
	world.ConsumeDiff()

	response, err := core.Display(ctx, DisplayRequest{ShipID: "alpha", Mode: "combat"})
	require.NoError(t, err)
	require.True(t, response.Success, response.Message)
	require.NotNil(t, response.Display)
	assert.False(t, world.ConsumeDiff().HasChanges())
	assert.Equal(t, 10000.0, mustShip(t, world, "alpha").Combat.Energy)

	response, err = core.Display(ctx, DisplayRequest{ShipID: "alpha", Mode: "hologram"})
	require.NoError(t, err)
	assert.False(t, response.Success)
}

func TestRemoveShipCleansRegistries(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0))

	_, err := core.Combat(ctx, CombatRequest{ShipID: "alpha", TargetID: "bravo", Action: "fire_phasers"})
	require.NoError(t, err)
	_, err = core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo"})
	require.NoError(t, err)

	require.NoError(t, core.RemoveShip(ctx, "bravo"))
	_, ok := world.Ship("bravo")
	assert.False(t, ok)
	assert.Zero(t, core.Battles().Len())
	assert.Zero(t, core.Locks().Len())

	_, err = core.Status(ctx, "bravo")
	require.ErrorIs(t, err, ErrUnknownShip)
}

func TestRegenerate(t *testing.T) {
	ship := combat.ShipCombatSnapshot{
		ID:           "alpha",
		Energy:       1000,
		HullDamage:   50,
		ShieldsUp:    true,
		ShieldCharge: 50,
		ShieldDamage: 20,
		HelmDamage:   0.5,
	}

	patch := Regenerate(ship, false)
	assert.InDelta(t, 75.0, patch.EnergyDelta, 1e-9, "half a hull regenerates three quarters")
	assert.InDelta(t, 4.0, patch.ShieldChargeDelta, 1e-9)
	assert.Equal(t, -2.0, patch.HullDamage)
	assert.Equal(t, -0.5, patch.HelmDamage)
	assert.Equal(t, -1.0, patch.ShieldDamage)

	fighting := Regenerate(ship, true)
	assert.Zero(t, fighting.HullDamage, "ships in battle are not repaired")
	assert.InDelta(t, 75.0, fighting.EnergyDelta, 1e-9)

	ship.Energy = MaxEnergy - 10
	assert.Equal(t, 10.0, Regenerate(ship, false).EnergyDelta)
}

func TestPopulationFollowsPlayers(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t, WithFleet(3, 0))
	require.NoError(t, core.Populate(ctx))
	assert.Equal(t, 3, core.Fleet().Len())
	ships, _ := world.Counts()
	assert.Equal(t, 3, ships)

	addPlayers(t, core, playerShip("alpha", 0, 0))
	assert.Equal(t, 2, core.Fleet().Len(), "a joining player replaces one cybertron")
	ships, _ = world.Counts()
	assert.Equal(t, 3, ships)

	require.NoError(t, core.RemoveShip(ctx, "alpha"))
	assert.Equal(t, 3, core.Fleet().Len())
	snapshot := core.Population().Snapshot()
	assert.Equal(t, 0, snapshot.Players)
	assert.Equal(t, 3, snapshot.Cybertrons)

	for _, ship := range core.Fleet().Ships() {
		record := mustShip(t, world, ship.ID)
		assert.True(t, record.AI)
		assert.Equal(t, CybertronOwner, record.OwnerID)
	}
}

func TestCybertronTickRecordsDecisions(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	spawned, err := core.SpawnAI(ctx, ai.CreateRequest{ShipID: "cyb-test", Class: 9, Family: ai.FamilyCybertron, Position: galaxy.Coordinate{}})
	require.NoError(t, err)
	require.True(t, spawned.Success, spawned.Message)
	addPlayers(t, core, playerShip("alpha", 0.5, 0))
	require.Equal(t, 1, core.Fleet().Len(), "a joining player never retires a requested cybertron")
	world.ConsumeDiff()

	summary, err := core.processCybertrons(ctx, simulation.Tick{Loop: simulation.LoopCybertron, Number: 1, Started: epoch})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Errors)

	status, err := core.Status(ctx, "cyb-test")
	require.NoError(t, err)
	require.NotNil(t, status.AI)
	require.NotNil(t, status.AI.LastDecision)
	assert.Len(t, eventsOf(world, events.KindDecision), 1)

	//1.- Decisions are only taken again once the family cooldown expired.
	summary, err = core.processCybertrons(ctx, simulation.Tick{Loop: simulation.LoopCybertron, Number: 2, Started: epoch})
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestCybertronWrecksLeaveTheFleet(t *testing.T) {
	ctx := context.Background()
	core, world := newTestCore(t)
	_, err := core.SpawnAI(ctx, ai.CreateRequest{ShipID: "cyb-test", Class: 9, Family: ai.FamilyCybertron})
	require.NoError(t, err)
	world.RemoveShip("cyb-test")

	_, err = core.processCybertrons(ctx, simulation.Tick{Loop: simulation.LoopCybertron, Number: 1})
	require.NoError(t, err)
	assert.Zero(t, core.Fleet().Len())
}

func TestRegisterNeedsEveryLoop(t *testing.T) {
	core, _ := newTestCore(t)
	loops := map[simulation.LoopName]LoopSettings{
		simulation.LoopMovement:    {Interval: 100 * time.Millisecond, Enabled: true},
		simulation.LoopShipSystems: {Interval: time.Second, Enabled: true},
		simulation.LoopCybertron:   {Interval: 500 * time.Millisecond, Enabled: true},
	}
	scheduler := simulation.NewScheduler(simulation.WithLogger(logging.NewTestLogger()))
	err := core.Register(scheduler, loops)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planets")

	loops[simulation.LoopPlanets] = LoopSettings{Interval: 5 * time.Second, Enabled: true}
	scheduler = simulation.NewScheduler(simulation.WithLogger(logging.NewTestLogger()))
	require.NoError(t, core.Register(scheduler, loops))
	assert.Len(t, scheduler.Loops(), 4)
}

func TestRegistrySizes(t *testing.T) {
	ctx := context.Background()
	core, _ := newTestCore(t)
	addPlayers(t, core, playerShip("alpha", 0, 0), playerShip("bravo", 1, 0))
	_, err := core.Lock(ctx, LockRequest{ShipID: "alpha", TargetID: "bravo"})
	require.NoError(t, err)

	sizes := core.RegistrySizes()
	assert.Equal(t, int64(1), sizes["locks"])
	assert.Equal(t, int64(0), sizes["battles"])
	for _, key := range []string{"self_destructs", "ai_ships", "cooldowns", "decoys"} {
		assert.Contains(t, sizes, key)
	}
}
