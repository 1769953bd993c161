package combat

import (
	"math"
	"math/rand"
	"sync"
)

// newECMRand builds a deterministic PRNG bound to the provided shot tuple.
func newECMRand(matchSeed, shotID, targetID string) *rand.Rand {
	//1.- Use the stable seed so that every replay reproduces the same random stream.
	return rand.New(rand.NewSource(SeedFor("ecm", matchSeed, shotID, targetID)))
}

// ShouldDecoyBreak resolves whether a decoy spoofs the shot guidance.
func ShouldDecoyBreak(matchSeed, shotID, targetID string, breakProbability float64) bool {
	//1.- Clamp invalid probabilities so deterministic replays never misbehave.
	breakProbability = clampProbability(breakProbability)
	if breakProbability == 0 {
		return false
	}
	if breakProbability == 1 {
		return true
	}
	//2.- Pull a deterministic roll from the seeded PRNG and compare to the threshold.
	return newECMRand(matchSeed, shotID, targetID).Float64() < breakProbability
}

// DecoyWindow describes how spoof probabilities evolve while a decoy is deployed.
type DecoyWindow struct {
	InitialProbability float64
	InitialTicks       int
	FinalProbability   float64
	TotalTicks         int
}

// ProbabilityAt resolves the spoof probability after the given number of elapsed ticks.
func (w DecoyWindow) ProbabilityAt(elapsed int) float64 {
	//1.- Normalise invalid inputs so callers cannot trigger negative windows.
	if elapsed < 0 {
		elapsed = 0
	}
	window := w.normalised()
	start := clampProbability(window.InitialProbability)
	end := clampProbability(window.FinalProbability)
	//2.- Expired decoys no longer spoof anything.
	if window.TotalTicks > 0 && elapsed >= window.TotalTicks {
		return 0
	}
	//3.- Before the plateau expires the probability remains at the initial level.
	if elapsed <= window.InitialTicks {
		return start
	}
	span := window.TotalTicks - window.InitialTicks
	if span <= 0 {
		return end
	}
	progress := float64(elapsed-window.InitialTicks) / float64(span)
	return clampProbability(start + (end-start)*progress)
}

// normalised guards the window against invalid tick counts to keep interpolation stable.
func (w DecoyWindow) normalised() DecoyWindow {
	if w.InitialTicks < 0 {
		w.InitialTicks = 0
	}
	if w.TotalTicks < 0 {
		w.TotalTicks = 0
	}
	if w.TotalTicks != 0 && w.TotalTicks < w.InitialTicks {
		w.TotalTicks = w.InitialTicks
	}
	return w
}

// DecoyTracker stores the deployment tick of every active decoy.
type DecoyTracker struct {
	mu       sync.Mutex
	window   DecoyWindow
	launched map[string]uint64
}

// NewDecoyTracker constructs an empty tracker bound to the decoy window.
func NewDecoyTracker(window DecoyWindow) *DecoyTracker {
	return &DecoyTracker{window: window.normalised(), launched: make(map[string]uint64)}
}

// Launch records a decoy deployment for the ship.
func (t *DecoyTracker) Launch(shipID string, tick uint64) {
	if t == nil || shipID == "" {
		return
	}
	t.mu.Lock()
	t.launched[shipID] = tick
	t.mu.Unlock()
}

// BreakProbability resolves the spoof chance for shots aimed at the ship.
// Ships flagged as decoyed without a tracked launch use the initial probability.
func (t *DecoyTracker) BreakProbability(shipID string, tick uint64) float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	launchedAt, ok := t.launched[shipID]
	window := t.window
	t.mu.Unlock()
	if !ok {
		return clampProbability(window.InitialProbability)
	}
	return window.ProbabilityAt(elapsedTicks(launchedAt, tick))
}

// Expire drops decoys whose window closed and returns the affected ships.
func (t *DecoyTracker) Expire(tick uint64) []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []string
	for shipID, launchedAt := range t.launched {
		if t.window.TotalTicks > 0 && elapsedTicks(launchedAt, tick) >= t.window.TotalTicks {
			expired = append(expired, shipID)
			delete(t.launched, shipID)
		}
	}
	return expired
}

// Release discards the stored deployment for the ship.
func (t *DecoyTracker) Release(shipID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.launched, shipID)
	t.mu.Unlock()
}

// Len reports the number of tracked decoys.
func (t *DecoyTracker) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.launched)
}

func elapsedTicks(from, to uint64) int {
	if to <= from {
		return 0
	}
	return int(to - from)
}

func clampProbability(probability float64) float64 {
	//1.- NaN probabilities collapse to zero to keep determinism intact.
	if math.IsNaN(probability) || probability < 0 {
		return 0
	}
	if probability > 1 {
		return 1
	}
	return probability
}
