package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/gameplay"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/radar"
)

// DefaultMaxDecisionsPerTick bounds how many ships decide in one AI tick.
const DefaultMaxDecisionsPerTick = 64

// CreateRequest describes a new AI ship.
type CreateRequest struct {
	ShipID     string            `json:"ship_id"`
	Class      int               `json:"ship_class"`
	Family     Family            `json:"ai_type"`
	Position   galaxy.Coordinate `json:"position"`
	Skill      int               `json:"skill_level,omitempty"`
	Task       Task              `json:"task_type,omitempty"`
	TaskTarget string            `json:"task_target,omitempty"`
}

// Result reports a registry mutation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Ship    *Ship  `json:"ship,omitempty"`
}

// Observation is what the world reports about an AI ship before it decides.
type Observation struct {
	Position galaxy.Coordinate  `json:"position"`
	Heading  float64            `json:"heading"`
	Speed    float64            `json:"speed"`
	Energy   float64            `json:"energy"`
	Damage   float64            `json:"damage"`
	Shields  int                `json:"shields"`
	Contacts []radar.ScanResult `json:"contacts"`
}

// Status is the externally visible view of an AI ship.
type Status struct {
	Ship         Ship      `json:"ship"`
	LastDecision *Decision `json:"last_decision,omitempty"`
}

// TickResult groups the decisions of one AI tick.
type TickResult struct {
	Tick         uint64     `json:"tick"`
	Decisions    []Decision `json:"decisions"`
	Coordination []Decision `json:"coordination,omitempty"`
	Deferred     int        `json:"deferred"`
}

// Hooks observe AI ships entering and leaving the registry through population scaling.
type Hooks struct {
	Spawned func(Ship)
	Retired func(shipID string)
}

// Manager owns every AI ship record.
type Manager struct {
	mu                sync.Mutex
	ships             map[string]*Ship
	decisions         map[string]Decision
	engine            *Engine
	rng               combat.Rand
	maxDecisions      int
	coordinationRange float64
	spawnArea         float64
	spawned           int
	hooks             Hooks
	logger            *logging.Logger
}

// Option customises the manager.
type Option func(*Manager)

// WithEngine replaces the decision engine.
func WithEngine(engine *Engine) Option {
	return func(m *Manager) {
		if engine != nil {
			m.engine = engine
		}
	}
}

// WithMaxDecisionsPerTick bounds the decisions made per tick; deferred ships decide next tick.
func WithMaxDecisionsPerTick(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.maxDecisions = limit
		}
	}
}

// WithCoordinationRange overrides the Cybertron grouping range in parsecs.
func WithCoordinationRange(parsecs float64) Option {
	return func(m *Manager) {
		if parsecs > 0 {
			m.coordinationRange = parsecs
		}
	}
}

// WithSpawnArea bounds the coordinates used for population spawns.
func WithSpawnArea(universeMax float64) Option {
	return func(m *Manager) {
		if universeMax > 0 {
			m.spawnArea = universeMax
		}
	}
}

// WithHooks installs spawn and retire callbacks.
func WithHooks(hooks Hooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithLogger routes manager logs to the provided logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs an empty AI registry. A nil rng falls back to a fixed seed.
func NewManager(rng combat.Rand, opts ...Option) *Manager {
	if rng == nil {
		rng = combat.NewRand(combat.SeedFor("ai"))
	}
	manager := &Manager{
		ships:             make(map[string]*Ship),
		decisions:         make(map[string]Decision),
		engine:            NewEngine(),
		rng:               rng,
		maxDecisions:      DefaultMaxDecisionsPerTick,
		coordinationRange: DefaultCoordinationRange,
		spawnArea:         galaxy.UniverseMax,
		logger:            logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager
}

// Engine exposes the decision engine.
func (m *Manager) Engine() *Engine { return m.engine }

// Create registers a new AI ship of the requested family.
func (m *Manager) Create(req CreateRequest) Result {
	if req.ShipID == "" {
		return Result{Message: "Ship id is required"}
	}
	if _, err := ParseFamily(string(req.Family)); err != nil {
		return Result{Message: fmt.Sprintf("Unknown AI type: %s", req.Family)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ships[req.ShipID]; exists {
		return Result{Message: "AI ship already exists"}
	}
	ship := m.newShipLocked(req)
	m.ships[ship.ID] = &ship
	created := ship
	return Result{Success: true, Message: fmt.Sprintf("AI ship %s created", ship.ID), Ship: &created}
}

func (m *Manager) newShipLocked(req CreateRequest) Ship {
	if req.Family == FamilyDroid {
		ship := NewDroid(m.rng, req.ShipID, req.Class, req.Position, req.Task)
		ship.TaskTarget = req.TaskTarget
		return ship
	}
	return NewCybertron(m.rng, req.ShipID, req.Class, req.Position, req.Skill)
}

// Remove drops an AI ship and its last decision.
func (m *Manager) Remove(shipID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.ships[shipID]
	delete(m.ships, shipID)
	delete(m.decisions, shipID)
	return exists
}

// Status returns the AI view of one ship.
func (m *Manager) Status(shipID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ship, ok := m.ships[shipID]
	if !ok {
		return Status{}, false
	}
	status := Status{Ship: *ship}
	if decision, ok := m.decisions[shipID]; ok {
		status.LastDecision = &decision
	}
	return status, true
}

// Ships lists every AI ship ordered by id.
func (m *Manager) Ships() []Ship {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

// Len reports the number of AI ships.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ships)
}

func (m *Manager) sortedLocked() []Ship {
	ships := make([]Ship, 0, len(m.ships))
	for _, ship := range m.ships {
		ships = append(ships, *ship)
	}
	sort.Slice(ships, func(i, j int) bool { return ships[i].ID < ships[j].ID })
	return ships
}

// Tick refreshes every ship from its observation and lets ships whose cooldown expired decide.
func (m *Manager) Tick(tick uint64, observations map[string]Observation) TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := TickResult{Tick: tick, Decisions: make([]Decision, 0)}
	ids := make([]string, 0, len(m.ships))
	for id := range m.ships {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ship := m.ships[id]
		observation, observed := observations[id]
		if observed {
			//1.- Mirror the authoritative world state before deciding.
			ship.Position = observation.Position
			ship.Heading = observation.Heading
			ship.Speed = observation.Speed
			ship.Energy = observation.Energy
			ship.Damage = observation.Damage
			ship.Shields = observation.Shields
		}
		if ship.Cooldown > 0 {
			ship.Cooldown--
			continue
		}
		//2.- Defer ships beyond the per tick budget without touching their cooldown.
		if len(result.Decisions) >= m.maxDecisions {
			result.Deferred++
			continue
		}
		updated, decision := m.engine.Decide(*ship, Assess(*ship, observation.Contacts))
		updated.Cooldown = updated.Family.UpdateFrequency()
		updated.LastTick = tick
		*ship = updated
		m.decisions[id] = decision
		result.Decisions = append(result.Decisions, decision)
	}

	//3.- Coordinate Cybertron groups after the individual decisions.
	var cyborgs []Ship
	for _, id := range ids {
		ship := m.ships[id]
		ship.LeaderID = ""
		if ship.Family == FamilyCybertron {
			cyborgs = append(cyborgs, *ship)
		}
	}
	result.Coordination = Coordinate(cyborgs, m.coordinationRange)
	for _, decision := range result.Coordination {
		if decision.Action == ActionSupport {
			m.ships[decision.ShipID].LeaderID = decision.TargetID
		}
	}
	return result
}

// Scale adjusts the number of population managed Cybertrons to the target and returns the
// confirmed population. New ships receive a random cyborg class and position; the newest ships
// retire first. Ships registered through Create are never counted or retired.
func (m *Manager) Scale(ctx context.Context, target int) (int, error) {
	if m == nil {
		return 0, errors.New("manager is nil")
	}
	if target < 0 {
		return 0, errors.New("target must be non-negative")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	classes := gameplay.Classes().OfType(gameplay.ShipTypeCyborg)
	if len(classes) == 0 {
		return 0, errors.New("no cyborg ship classes available")
	}

	m.mu.Lock()
	var cyborgs []Ship
	for _, ship := range m.sortedLocked() {
		if ship.Managed {
			cyborgs = append(cyborgs, ship)
		}
	}
	var spawned []Ship
	var retired []string
	for count := len(cyborgs); count < target; count++ {
		//1.- Pick a free population id so retired ids may be reused.
		m.spawned++
		id := fmt.Sprintf("cyb-%04d", m.spawned)
		for m.ships[id] != nil {
			m.spawned++
			id = fmt.Sprintf("cyb-%04d", m.spawned)
		}
		class := classes[m.rng.Intn(len(classes))]
		position := galaxy.Coordinate{
			X: combat.Uniform(m.rng, -m.spawnArea, m.spawnArea),
			Y: combat.Uniform(m.rng, -m.spawnArea, m.spawnArea),
		}
		ship := NewCybertron(m.rng, id, class.Number, position, 0)
		ship.Managed = true
		m.ships[id] = &ship
		spawned = append(spawned, ship)
	}
	for index := len(cyborgs) - 1; index >= target; index-- {
		//2.- Retire the highest ids first so long lived ships keep flying.
		id := cyborgs[index].ID
		delete(m.ships, id)
		delete(m.decisions, id)
		retired = append(retired, id)
	}
	confirmed := 0
	for _, ship := range m.ships {
		if ship.Managed {
			confirmed++
		}
	}
	hooks := m.hooks
	m.mu.Unlock()

	//3.- Notify outside the lock so hooks may call back into the registry.
	for _, ship := range spawned {
		m.logger.Info("cybertron spawned", logging.String("ship_id", ship.ID), logging.Int("class", ship.Class))
		if hooks.Spawned != nil {
			hooks.Spawned(ship)
		}
	}
	for _, id := range retired {
		m.logger.Info("cybertron retired", logging.String("ship_id", id))
		if hooks.Retired != nil {
			hooks.Retired(id)
		}
	}
	return confirmed, nil
}
