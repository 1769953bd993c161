package targeting

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	// DefaultMaxRange is the furthest distance in parsecs a lock can be held.
	DefaultMaxRange = 150000.0
	// DefaultBaseTime is the acquisition time in ticks before modifiers.
	DefaultBaseTime = 5
	// DecayRate is the strength a held lock loses every tick without a refresh.
	DecayRate = 0.1
	// HoldThreshold is the strength below which a lock jams or is lost.
	HoldThreshold = 0.3

	acquireGain       = 0.2
	jamInterference   = 0.2
	jamStrengthLoss   = 0.3
	interferenceDecay = 0.1
	recoveryGain      = 0.2
)

// Status enumerates the lock state machine.
type Status string

const (
	StatusNoLock    Status = "no_lock"
	StatusAcquiring Status = "acquiring"
	StatusLocked    Status = "locked"
	StatusJammed    Status = "jammed"
	StatusLost      Status = "lost"
)

// Key identifies a lock by attacker and target.
type Key struct {
	AttackerID string
	TargetID   string
}

// Lock captures the targeting state between two ships.
type Lock struct {
	AttackerID         string  `json:"attacker_id"`
	TargetID           string  `json:"target_id"`
	Status             Status  `json:"lock_status"`
	Strength           float64 `json:"lock_strength"`
	TimeToAcquire      int     `json:"time_to_acquire"`
	JammerInterference float64 `json:"jammer_interference"`
	Range              float64 `json:"lock_range"`
	Bearing            float64 `json:"target_bearing"`
}

// Result reports the outcome of a lock command.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Lock    *Lock  `json:"lock,omitempty"`
}

// Observation is the geometry of a lock pair sampled for one tick.
type Observation struct {
	Range        float64
	Bearing      float64
	JammerActive bool
}

// Resolver looks up the current geometry between attacker and target. It returns false when either ship is gone.
type Resolver func(attackerID, targetID string) (Observation, bool)

// Registry owns every active lock behind a single mutex.
type Registry struct {
	mu       sync.Mutex
	locks    map[Key]*Lock
	maxRange float64
	baseTime int
}

// Option customises the registry.
type Option func(*Registry)

// WithMaxRange overrides the lock range.
func WithMaxRange(maxRange float64) Option {
	return func(r *Registry) {
		if maxRange > 0 {
			r.maxRange = maxRange
		}
	}
}

// WithBaseTime overrides the base acquisition time.
func WithBaseTime(ticks int) Option {
	return func(r *Registry) {
		if ticks > 0 {
			r.baseTime = ticks
		}
	}
}

// NewRegistry constructs an empty lock registry.
func NewRegistry(opts ...Option) *Registry {
	registry := &Registry{locks: make(map[Key]*Lock), maxRange: DefaultMaxRange, baseTime: DefaultBaseTime}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry
}

// MaxRange reports the configured lock range.
func (r *Registry) MaxRange() float64 { return r.maxRange }

// AcquisitionTime returns the ticks needed to lock a target at the given range.
func (r *Registry) AcquisitionTime(rangeToTarget float64, fireControlDamaged bool) int {
	base := float64(r.baseTime)
	if fireControlDamaged {
		base *= 2
	}
	return int(math.Floor(base * (1 + math.Max(0, rangeToTarget)/r.maxRange)))
}

// Acquire starts acquiring a lock on the target.
func (r *Registry) Acquire(attackerID, targetID string, rangeToTarget, bearing float64, fireControlDamaged bool) Result {
	//1.- Reject impossible requests before touching the registry.
	if attackerID == "" || targetID == "" || attackerID == targetID {
		return Result{Message: "Invalid lock target"}
	}
	if rangeToTarget > r.maxRange {
		return Result{Message: "Target out of lock range"}
	}
	key := Key{attackerID, targetID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.locks[key]; exists {
		return Result{Message: "Already acquiring lock on this target"}
	}
	//2.- Register the lock in the acquiring state with zero strength.
	lock := &Lock{
		AttackerID:    attackerID,
		TargetID:      targetID,
		Status:        StatusAcquiring,
		TimeToAcquire: r.AcquisitionTime(rangeToTarget, fireControlDamaged),
		Range:         rangeToTarget,
		Bearing:       bearing,
	}
	r.locks[key] = lock
	copied := *lock
	return Result{Success: true, Message: fmt.Sprintf("Acquiring target lock on %s", targetID), Lock: &copied}
}

// Update applies one observation to the lock.
func (r *Registry) Update(attackerID, targetID string, rangeToTarget, bearing float64, jammerActive bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[Key{attackerID, targetID}]
	if !ok {
		return Result{Message: "No active lock on this target"}
	}
	message := r.applyLocked(lock, Observation{Range: rangeToTarget, Bearing: bearing, JammerActive: jammerActive})
	copied := *lock
	return Result{Success: true, Message: message, Lock: &copied}
}

// applyLocked advances the state machine for one observation. Callers hold r.mu.
func (r *Registry) applyLocked(lock *Lock, obs Observation) string {
	//1.- Targets leaving the envelope are lost outright.
	if obs.Range > r.maxRange {
		lock.Status = StatusLost
		lock.Strength = 0
		return "Target moved out of lock range"
	}
	lock.Range = obs.Range
	lock.Bearing = obs.Bearing

	//2.- Jamming raises interference and erodes strength; only then may the lock jam.
	if obs.JammerActive {
		lock.JammerInterference = clamp01(lock.JammerInterference + jamInterference)
		lock.Strength = clamp01(lock.Strength - jamStrengthLoss)
		if lock.Strength < HoldThreshold {
			lock.Status = StatusJammed
		}
	} else {
		lock.JammerInterference = clamp01(lock.JammerInterference - interferenceDecay)
		if lock.Status == StatusJammed {
			lock.Strength = clamp01(lock.Strength + recoveryGain)
			if lock.Strength >= HoldThreshold {
				lock.Status = StatusAcquiring
				if lock.TimeToAcquire <= 0 {
					lock.Status = StatusLocked
				}
			}
		}
	}

	//3.- Acquisition counts down and builds strength until the lock is complete.
	if lock.Status == StatusAcquiring {
		lock.TimeToAcquire--
		lock.Strength = clamp01(lock.Strength + acquireGain)
		if lock.TimeToAcquire <= 0 {
			lock.TimeToAcquire = 0
			lock.Status = StatusLocked
			lock.Strength = 1
		}
	}
	return fmt.Sprintf("Lock %s", lock.Status)
}

// Refresh restores a held lock to full strength, e.g. after the attacker fires on the target.
func (r *Registry) Refresh(attackerID, targetID string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[Key{attackerID, targetID}]
	if !ok {
		return Result{Message: "No active lock on this target"}
	}
	if lock.Status != StatusLocked {
		return Result{Message: fmt.Sprintf("Lock is %s", lock.Status)}
	}
	lock.Strength = 1
	copied := *lock
	return Result{Success: true, Message: "Target lock refreshed", Lock: &copied}
}

// Break removes the lock.
func (r *Registry) Break(attackerID, targetID string) Result {
	key := Key{attackerID, targetID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locks[key]; !ok {
		return Result{Message: "No active lock on this target"}
	}
	delete(r.locks, key)
	return Result{Success: true, Message: "Target lock broken"}
}

// Status returns a copy of the lock between the pair.
func (r *Registry) Status(attackerID, targetID string) (Lock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[Key{attackerID, targetID}]
	if !ok {
		return Lock{AttackerID: attackerID, TargetID: targetID, Status: StatusNoLock}, false
	}
	return *lock, true
}

// Locked reports whether the attacker holds a complete lock on the target.
func (r *Registry) Locked(attackerID, targetID string) bool {
	lock, ok := r.Status(attackerID, targetID)
	return ok && lock.Status == StatusLocked
}

// LocksFor lists the attacker's locks ordered by target.
func (r *Registry) LocksFor(attackerID string) []Lock {
	r.mu.Lock()
	defer r.mu.Unlock()
	var locks []Lock
	for key, lock := range r.locks {
		if key.AttackerID == attackerID {
			locks = append(locks, *lock)
		}
	}
	sortLocks(locks)
	return locks
}

// RemoveShip drops every lock held by or on the ship and reports how many were removed.
func (r *Registry) RemoveShip(shipID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key := range r.locks {
		if key.AttackerID == shipID || key.TargetID == shipID {
			delete(r.locks, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked locks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Tick advances every lock by one tick and returns the resulting snapshots, including the ones removed as lost.
func (r *Registry) Tick(resolve Resolver) []Lock {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshots := make([]Lock, 0, len(r.locks))
	for key, lock := range r.locks {
		//1.- Locks on ships that vanished are lost immediately.
		obs, ok := Observation{}, false
		if resolve != nil {
			obs, ok = resolve(key.AttackerID, key.TargetID)
		}
		if !ok {
			lock.Status = StatusLost
			lock.Strength = 0
		}
		held := lock.Status == StatusLocked
		if ok {
			r.applyLocked(lock, obs)
		}
		//2.- Held locks decay until refreshed and are lost below the hold threshold.
		if held && lock.Status == StatusLocked {
			lock.Strength = clamp01(lock.Strength - DecayRate)
			if lock.Strength < HoldThreshold {
				lock.Status = StatusLost
			}
		}
		snapshots = append(snapshots, *lock)
		if lock.Status == StatusLost {
			delete(r.locks, key)
		}
	}
	sortLocks(snapshots)
	return snapshots
}

func sortLocks(locks []Lock) {
	sort.Slice(locks, func(i, j int) bool {
		if locks[i].AttackerID != locks[j].AttackerID {
			return locks[i].AttackerID < locks[j].AttackerID
		}
		return locks[i].TargetID < locks[j].TargetID
	})
}

func clamp01(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
