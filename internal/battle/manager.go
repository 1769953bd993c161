// Package battle keeps the bookkeeping for ongoing exchanges between pairs of ships.
package battle

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/destruct"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/targeting"
)

const (
	// DefaultMaxRange is the furthest distance in parsecs a battle may start at.
	DefaultMaxRange = 200000.0
	// DefaultTimeout ends a battle after 50 idle ticks of two seconds each.
	DefaultTimeout = 100 * time.Second

	ReasonManual      = "manual"
	ReasonDestroyed   = "destroyed"
	ReasonTimeout     = "timeout"
	ReasonShipRemoved = "ship_removed"
)

// Key identifies a battle by attacker and defender.
type Key struct {
	AttackerID string
	DefenderID string
}

// State is the bookkeeping record of one battle.
type State struct {
	AttackerID          string    `json:"attacker_id"`
	DefenderID          string    `json:"defender_id"`
	StartedAt           time.Time `json:"battle_start"`
	DurationTicks       int       `json:"battle_duration"`
	AttackerDamageDealt float64   `json:"attacker_damage_dealt"`
	DefenderDamageDealt float64   `json:"defender_damage_dealt"`
	Range               float64   `json:"battle_range"`
	LastAction          time.Time `json:"last_action"`
	Active              bool      `json:"is_active"`
}

// Summary is produced whenever a battle ends.
type Summary struct {
	AttackerID          string    `json:"attacker_id"`
	DefenderID          string    `json:"defender_id"`
	StartedAt           time.Time `json:"started_at"`
	EndedAt             time.Time `json:"ended_at"`
	DurationSeconds     float64   `json:"duration_seconds"`
	DurationTicks       int       `json:"duration_ticks"`
	AttackerDamageDealt float64   `json:"attacker_damage_dealt"`
	DefenderDamageDealt float64   `json:"defender_damage_dealt"`
	EndReason           string    `json:"end_reason"`
}

// SummarySink receives every battle summary, e.g. the archive or the combat journal.
type SummarySink interface {
	RecordBattle(summary Summary) error
}

// StartResult reports a battle initiation. Both ships are flagged hostile on success.
type StartResult struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Battle        *State           `json:"battle,omitempty"`
	AttackerPatch combat.ShipPatch `json:"attacker_patch"`
	DefenderPatch combat.ShipPatch `json:"defender_patch"`
}

// ActionResult reports one combat action resolved inside a battle.
type ActionResult struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Fire      combat.FireResult `json:"fire"`
	Battle    *State            `json:"battle,omitempty"`
	Continues bool              `json:"battle_continues"`
	Summary   *Summary          `json:"summary,omitempty"`
}

// ShipStatus describes a ship's first battle from its own point of view.
type ShipStatus struct {
	AttackerID  string  `json:"attacker_id"`
	DefenderID  string  `json:"defender_id"`
	IsAttacker  bool    `json:"is_attacker"`
	OpponentID  string  `json:"opponent_id"`
	Range       float64 `json:"battle_range"`
	Duration    int     `json:"duration"`
	DamageDealt float64 `json:"damage_dealt"`
}

// TickResult groups everything one battle tick produced.
type TickResult struct {
	Battles     []State               `json:"battles"`
	Summaries   []Summary             `json:"summaries,omitempty"`
	Detonations []destruct.Detonation `json:"detonations,omitempty"`
}

// CleanupReport lists what was discarded for a removed ship.
type CleanupReport struct {
	Summaries    []Summary `json:"summaries,omitempty"`
	LocksRemoved int       `json:"locks_removed"`
	SelfDestruct bool      `json:"self_destruct_removed"`
}

// Manager owns the active battles and coordinates the tactical registries around them.
type Manager struct {
	mu        sync.Mutex
	battles   map[Key]*State
	engine    *combat.Engine
	locks     *targeting.Registry
	destructs *destruct.Registry
	maxRange  float64
	timeout   time.Duration
	now       func() time.Time
	sinks     []SummarySink
	logger    *logging.Logger
}

// Option customises the manager.
type Option func(*Manager)

// WithMaxRange overrides the battle start range.
func WithMaxRange(maxRange float64) Option {
	return func(m *Manager) {
		if maxRange > 0 {
			m.maxRange = maxRange
		}
	}
}

// WithTimeout overrides the inactivity timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithClock injects the monotonic time source every timeout comparison uses.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSummarySink registers a consumer for battle summaries.
func WithSummarySink(sink SummarySink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
}

// WithLogger overrides the manager logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager wires the manager to the combat engine and the lock and self-destruct registries.
func NewManager(engine *combat.Engine, locks *targeting.Registry, destructs *destruct.Registry, opts ...Option) *Manager {
	if engine == nil {
		engine = combat.NewEngine(nil)
	}
	if locks == nil {
		locks = targeting.NewRegistry()
	}
	if destructs == nil {
		destructs = destruct.NewRegistry(engine.Rand())
	}
	manager := &Manager{
		battles:   make(map[Key]*State),
		engine:    engine,
		locks:     locks,
		destructs: destructs,
		maxRange:  DefaultMaxRange,
		timeout:   DefaultTimeout,
		now:       time.Now,
		logger:    logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager
}

// Engine exposes the combat engine the manager resolves actions with.
func (m *Manager) Engine() *combat.Engine { return m.engine }

// Locks exposes the lock registry.
func (m *Manager) Locks() *targeting.Registry { return m.locks }

// Destructs exposes the self-destruct registry.
func (m *Manager) Destructs() *destruct.Registry { return m.destructs }

// Start opens a battle between the two ships.
func (m *Manager) Start(attacker, defender combat.ShipCombatSnapshot) StartResult {
	if attacker.ID == "" || defender.ID == "" || attacker.ID == defender.ID {
		return StartResult{Message: "Invalid target"}
	}
	if attacker.Destroyed() || defender.Destroyed() {
		return StartResult{Message: "Ship destroyed"}
	}
	rangeToTarget := galaxy.Range(attacker.Position, defender.Position)
	key := Key{attacker.ID, defender.ID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.battles[key]; exists {
		return StartResult{Message: "Battle already in progress"}
	}
	if rangeToTarget > m.maxRange {
		return StartResult{Message: "Target out of combat range"}
	}
	//1.- Register the battle and mark both sides hostile.
	now := m.now()
	state := &State{
		AttackerID: attacker.ID,
		DefenderID: defender.ID,
		StartedAt:  now,
		Range:      rangeToTarget,
		LastAction: now,
		Active:     true,
	}
	m.battles[key] = state
	copied := *state
	return StartResult{
		Success:       true,
		Message:       fmt.Sprintf("Battle commenced between %s and %s", attacker.ID, defender.ID),
		Battle:        &copied,
		AttackerPatch: combat.ShipPatch{ShipID: attacker.ID, Hostile: combat.Bool(true)},
		DefenderPatch: combat.ShipPatch{ShipID: defender.ID, Hostile: combat.Bool(true)},
	}
}

// ProcessAction resolves a combat action between two ships already engaged in a battle.
func (m *Manager) ProcessAction(req combat.FireRequest) ActionResult {
	attackerID, defenderID := req.Attacker.ID, req.Target.ID
	m.mu.Lock()
	state, attackerSide := m.lookupLocked(attackerID, defenderID)
	m.mu.Unlock()
	if state == nil {
		return ActionResult{Message: "No active battle found"}
	}

	//1.- Resolve the shot outside the registry lock; failed validation leaves the battle untouched.
	fire := m.engine.Fire(req)
	if !fire.Success {
		return ActionResult{Message: fire.Message, Fire: fire, Continues: true}
	}
	m.locks.Refresh(attackerID, defenderID)

	m.mu.Lock()
	state, attackerSide = m.lookupLocked(attackerID, defenderID)
	if state == nil {
		m.mu.Unlock()
		return ActionResult{Success: true, Message: fire.Message, Fire: fire}
	}
	//2.- Credit the damage to whichever side of the battle fired.
	if fire.Report != nil {
		if attackerSide {
			state.AttackerDamageDealt += fire.Report.TotalDamage
		} else {
			state.DefenderDamageDealt += fire.Report.TotalDamage
		}
	}
	state.Range = fire.Range
	state.LastAction = m.now()
	state.DurationTicks++
	copied := *state
	result := ActionResult{Success: true, Message: fire.Message, Fire: fire, Battle: &copied, Continues: true}
	var summary *Summary
	if fire.Report != nil && fire.Report.ShipDestroyed {
		ended := m.endLocked(Key{state.AttackerID, state.DefenderID}, ReasonDestroyed)
		summary = &ended
		result.Continues = false
		result.Summary = summary
		result.Battle.Active = false
	}
	m.mu.Unlock()

	if summary != nil {
		m.publish(*summary)
	}
	return result
}

// End closes the battle and returns its summary.
func (m *Manager) End(attackerID, defenderID, reason string) (Summary, bool) {
	if reason == "" {
		reason = ReasonManual
	}
	key := Key{attackerID, defenderID}
	m.mu.Lock()
	if _, ok := m.battles[key]; !ok {
		m.mu.Unlock()
		return Summary{}, false
	}
	summary := m.endLocked(key, reason)
	m.mu.Unlock()
	m.publish(summary)
	return summary, true
}

// Discard drops a battle that never saw a valid action. No summary is published.
func (m *Manager) Discard(attackerID, defenderID string) bool {
	key := Key{attackerID, defenderID}
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.battles[key]
	if !ok || state.DurationTicks > 0 {
		return false
	}
	delete(m.battles, key)
	return true
}

// Sweep ends every battle idle for longer than the timeout.
func (m *Manager) Sweep() []Summary {
	m.mu.Lock()
	summaries := m.sweepLocked(m.now())
	m.mu.Unlock()
	for _, summary := range summaries {
		m.publish(summary)
	}
	return summaries
}

// Tick sweeps timeouts, advances battle durations and counts down self-destructs.
func (m *Manager) Tick(locate destruct.Locator) TickResult {
	m.mu.Lock()
	result := TickResult{Summaries: m.sweepLocked(m.now())}
	for _, state := range m.battles {
		state.DurationTicks++
		result.Battles = append(result.Battles, *state)
	}
	m.mu.Unlock()
	sortStates(result.Battles)

	for _, summary := range result.Summaries {
		m.publish(summary)
	}
	result.Detonations = m.destructs.Tick(locate)
	return result
}

// Status reports the first battle the ship takes part in.
func (m *Manager) Status(shipID string) (ShipStatus, bool) {
	for _, state := range m.Active() {
		if state.AttackerID != shipID && state.DefenderID != shipID {
			continue
		}
		status := ShipStatus{
			AttackerID: state.AttackerID,
			DefenderID: state.DefenderID,
			IsAttacker: state.AttackerID == shipID,
			Range:      state.Range,
			Duration:   state.DurationTicks,
		}
		if status.IsAttacker {
			status.OpponentID = state.DefenderID
			status.DamageDealt = state.AttackerDamageDealt
		} else {
			status.OpponentID = state.AttackerID
			status.DamageDealt = state.DefenderDamageDealt
		}
		return status, true
	}
	return ShipStatus{}, false
}

// InBattle reports whether the ship is part of any active battle.
func (m *Manager) InBattle(shipID string) bool {
	_, ok := m.Status(shipID)
	return ok
}

// Active lists every battle ordered by attacker then defender.
func (m *Manager) Active() []State {
	m.mu.Lock()
	states := make([]State, 0, len(m.battles))
	for _, state := range m.battles {
		states = append(states, *state)
	}
	m.mu.Unlock()
	sortStates(states)
	return states
}

// Len reports the number of active battles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.battles)
}

// CleanupShip discards the battles, locks, cooldowns and self-destruct owned by a destroyed ship.
// Each registry is cleaned independently, so observers may briefly see partial cleanup.
func (m *Manager) CleanupShip(shipID string) CleanupReport {
	var report CleanupReport
	m.mu.Lock()
	for key := range m.battles {
		if key.AttackerID == shipID || key.DefenderID == shipID {
			report.Summaries = append(report.Summaries, m.endLocked(key, ReasonShipRemoved))
		}
	}
	m.mu.Unlock()
	for _, summary := range report.Summaries {
		m.publish(summary)
	}
	report.LocksRemoved = m.locks.RemoveShip(shipID)
	report.SelfDestruct = m.destructs.Remove(shipID)
	m.engine.RemoveShip(shipID)
	return report
}

func (m *Manager) lookupLocked(attackerID, defenderID string) (*State, bool) {
	if state, ok := m.battles[Key{attackerID, defenderID}]; ok {
		return state, true
	}
	if state, ok := m.battles[Key{defenderID, attackerID}]; ok {
		return state, false
	}
	return nil, false
}

func (m *Manager) sweepLocked(now time.Time) []Summary {
	var summaries []Summary
	for key, state := range m.battles {
		if now.Sub(state.LastAction) > m.timeout {
			summaries = append(summaries, m.endLocked(key, ReasonTimeout))
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].AttackerID < summaries[j].AttackerID })
	return summaries
}

func (m *Manager) endLocked(key Key, reason string) Summary {
	state := m.battles[key]
	delete(m.battles, key)
	now := m.now()
	return Summary{
		AttackerID:          state.AttackerID,
		DefenderID:          state.DefenderID,
		StartedAt:           state.StartedAt,
		EndedAt:             now,
		DurationSeconds:     now.Sub(state.StartedAt).Seconds(),
		DurationTicks:       state.DurationTicks,
		AttackerDamageDealt: state.AttackerDamageDealt,
		DefenderDamageDealt: state.DefenderDamageDealt,
		EndReason:           reason,
	}
}

func (m *Manager) publish(summary Summary) {
	m.logger.Info("battle ended",
		logging.String("attacker", summary.AttackerID),
		logging.String("defender", summary.DefenderID),
		logging.String("reason", summary.EndReason),
		logging.Int("duration_ticks", summary.DurationTicks),
	)
	for _, sink := range m.sinks {
		if err := sink.RecordBattle(summary); err != nil {
			m.logger.Warn("battle summary sink failed", logging.Error(err))
		}
	}
}

func sortStates(states []State) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].AttackerID != states[j].AttackerID {
			return states[i].AttackerID < states[j].AttackerID
		}
		return states[i].DefenderID < states[j].DefenderID
	})
}
