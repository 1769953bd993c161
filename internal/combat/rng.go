package combat

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"sync"
)

// Rand is the random source every probabilistic combat roll draws from.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// NewRand returns a goroutine safe source seeded with the provided value.
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// SeedFor derives a deterministic seed from the provided identifiers.
func SeedFor(parts ...string) int64 {
	//1.- Hash the inputs with separators so each identifier influences the result independently.
	hasher := sha256.New()
	hasher.Write([]byte("ge.combat"))
	for _, part := range parts {
		hasher.Write([]byte{0})
		hasher.Write([]byte(part))
	}
	digest := hasher.Sum(nil)
	//2.- Convert the first eight bytes into a signed integer seed for math/rand.
	seed := int64(binary.LittleEndian.Uint64(digest[0:8]))
	if seed == 0 {
		seed = int64(binary.LittleEndian.Uint64(digest[8:16]))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// RandomInt draws an integer uniformly from [low, high].
func RandomInt(r Rand, low, high int) int {
	if high <= low {
		return low
	}
	return low + r.Intn(high-low+1)
}

// Uniform draws a float uniformly from [low, high).
func Uniform(r Rand, low, high float64) float64 {
	return low + r.Float64()*(high-low)
}
