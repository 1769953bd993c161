// Package destruct tracks self-destruct countdowns and the detonations they produce.
package destruct

import (
	"fmt"
	"sort"
	"sync"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/gameplay"
)

const (
	// DefaultCountdown is the number of ticks between arming and detonation.
	DefaultCountdown = 10
	// DefaultAbortLimit is the countdown value at and below which aborting is refused.
	DefaultAbortLimit = 5

	abortCodeMin    = 1000
	abortCodeMax    = 9999
	baseBlastDamage = 200.0
	baseBlastRadius = 30000.0
)

// State is the countdown owned by one ship.
type State struct {
	ShipID       string            `json:"ship_id"`
	Initiator    string            `json:"initiator"`
	Countdown    int               `json:"countdown"`
	AbortLimit   int               `json:"abort_time_limit"`
	AbortAllowed bool              `json:"abort_allowed"`
	AbortCode    int               `json:"-"`
	BlastRadius  float64           `json:"blast_radius"`
	BlastDamage  float64           `json:"blast_damage"`
	Position     galaxy.Coordinate `json:"position"`
}

// Result reports the outcome of a self-destruct command.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// AbortCode is only populated on initiation and must be relayed to the initiator alone.
	AbortCode int    `json:"abort_code,omitempty"`
	State     *State `json:"state,omitempty"`
}

// Detonation is the one shot area damage event emitted at countdown zero.
type Detonation struct {
	ShipID   string            `json:"ship_id"`
	Position galaxy.Coordinate `json:"position"`
	Radius   float64           `json:"radius"`
	Damage   float64           `json:"damage"`
}

// Target is a ship that may be caught in a blast.
type Target struct {
	ID       string
	Position galaxy.Coordinate
}

// Impact is the damage one ship takes from a detonation.
type Impact struct {
	ShipID   string  `json:"ship_id"`
	Distance float64 `json:"distance"`
	Damage   float64 `json:"damage"`
}

// Affected lists the ships inside the blast radius, closest first. The exploding ship is excluded.
func (d Detonation) Affected(ships []Target) []Impact {
	var impacts []Impact
	for _, ship := range ships {
		if ship.ID == "" || ship.ID == d.ShipID {
			continue
		}
		distance := galaxy.Range(d.Position, ship.Position)
		damage := combat.BlastDamage(d.Damage, d.Radius, distance)
		if damage <= 0 {
			continue
		}
		impacts = append(impacts, Impact{ShipID: ship.ID, Distance: distance, Damage: damage})
	}
	sort.Slice(impacts, func(i, j int) bool {
		if impacts[i].Distance != impacts[j].Distance {
			return impacts[i].Distance < impacts[j].Distance
		}
		return impacts[i].ShipID < impacts[j].ShipID
	})
	return impacts
}

// Locator resolves a ship's current position at detonation time.
type Locator func(shipID string) (galaxy.Coordinate, bool)

// Registry owns every armed countdown behind a single mutex.
type Registry struct {
	mu         sync.Mutex
	rng        combat.Rand
	states     map[string]*State
	countdown  int
	abortLimit int
}

// Option customises the registry.
type Option func(*Registry)

// WithCountdown overrides the countdown length and abort limit.
func WithCountdown(countdown, abortLimit int) Option {
	return func(r *Registry) {
		if countdown > 0 && abortLimit >= 0 && abortLimit < countdown {
			r.countdown = countdown
			r.abortLimit = abortLimit
		}
	}
}

// NewRegistry constructs a registry drawing abort codes from rng.
func NewRegistry(rng combat.Rand, opts ...Option) *Registry {
	if rng == nil {
		rng = combat.NewRand(combat.SeedFor("destruct"))
	}
	registry := &Registry{rng: rng, states: make(map[string]*State), countdown: DefaultCountdown, abortLimit: DefaultAbortLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry
}

// BlastFor scales the detonation to the ship class.
func BlastFor(class gameplay.ShipClass) (damage, radius float64) {
	return baseBlastDamage + class.MaxPoints/10, baseBlastRadius + class.MaxTons*2
}

// Initiate arms the ship's self-destruct and returns the one time abort code.
func (r *Registry) Initiate(shipID, initiator string, class gameplay.ShipClass, position galaxy.Coordinate) Result {
	if shipID == "" {
		return Result{Message: "Invalid ship"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.states[shipID]; exists {
		return Result{Message: "Self-destruct already in progress"}
	}
	//1.- Draw the abort code and scale the blast before registering the countdown.
	damage, radius := BlastFor(class)
	state := &State{
		ShipID:       shipID,
		Initiator:    initiator,
		Countdown:    r.countdown,
		AbortLimit:   r.abortLimit,
		AbortAllowed: true,
		AbortCode:    combat.RandomInt(r.rng, abortCodeMin, abortCodeMax),
		BlastRadius:  radius,
		BlastDamage:  damage,
		Position:     position,
	}
	r.states[shipID] = state
	snapshot := redacted(state)
	return Result{
		Success:   true,
		Message:   fmt.Sprintf("Self-destruct initiated. Countdown: %d ticks. Abort code: %d", state.Countdown, state.AbortCode),
		AbortCode: state.AbortCode,
		State:     &snapshot,
	}
}

// Abort cancels the countdown when the code matches and the abort window is still open.
func (r *Registry) Abort(shipID string, code int) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[shipID]
	if !ok {
		return Result{Message: "No self-destruct in progress"}
	}
	if state.Countdown <= state.AbortLimit {
		return Result{Message: "Too late to abort self-destruct"}
	}
	if code != state.AbortCode {
		return Result{Message: "Invalid abort code"}
	}
	delete(r.states, shipID)
	return Result{Success: true, Message: "Self-destruct aborted"}
}

// Tick advances every countdown and returns the detonations that fired this tick.
func (r *Registry) Tick(locate Locator) []Detonation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var detonations []Detonation
	for shipID, state := range r.states {
		//1.- Count down and close the abort window once the limit is reached.
		state.Countdown--
		if state.Countdown <= state.AbortLimit {
			state.AbortAllowed = false
		}
		if state.Countdown > 0 {
			continue
		}
		//2.- Detonate exactly once at the ship's latest known position.
		position := state.Position
		if locate != nil {
			if current, ok := locate(shipID); ok {
				position = current
			}
		}
		detonations = append(detonations, Detonation{ShipID: shipID, Position: position, Radius: state.BlastRadius, Damage: state.BlastDamage})
		delete(r.states, shipID)
	}
	sort.Slice(detonations, func(i, j int) bool { return detonations[i].ShipID < detonations[j].ShipID })
	return detonations
}

// Status returns the countdown without its abort code.
func (r *Registry) Status(shipID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[shipID]
	if !ok {
		return State{}, false
	}
	return redacted(state), true
}

// Active lists every armed countdown without abort codes.
func (r *Registry) Active() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]State, 0, len(r.states))
	for _, state := range r.states {
		states = append(states, redacted(state))
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ShipID < states[j].ShipID })
	return states
}

// Remove discards the ship's countdown without detonating it.
func (r *Registry) Remove(shipID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[shipID]; !ok {
		return false
	}
	delete(r.states, shipID)
	return true
}

// Len reports the number of armed countdowns.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func redacted(state *State) State {
	copied := *state
	copied.AbortCode = 0
	return copied
}
