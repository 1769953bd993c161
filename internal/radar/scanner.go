package radar

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/galaxy"
)

var (
	// ErrUnknownScanner is returned for scanner types outside the closed set.
	ErrUnknownScanner = errors.New("unknown scanner type")
	// ErrInsufficientEnergy is returned when the observer cannot power the scan.
	ErrInsufficientEnergy = errors.New("insufficient energy for scanner operation")
)

// ScannerType enumerates the sensor suites a ship can sweep with.
type ScannerType string

const (
	ScannerShortRange    ScannerType = "short_range"
	ScannerLongRange     ScannerType = "long_range"
	ScannerTactical      ScannerType = "tactical"
	ScannerHyperspace    ScannerType = "hyperspace"
	ScannerCloakDetector ScannerType = "cloak_detector"
)

// ScannerSpec is the envelope of one scanner type.
type ScannerSpec struct {
	Type     ScannerType `json:"type"`
	MaxRange float64     `json:"max_range"`
	Accuracy float64     `json:"accuracy"`
	Energy   float64     `json:"energy"`
}

var scannerSpecs = map[ScannerType]ScannerSpec{
	ScannerShortRange:    {Type: ScannerShortRange, MaxRange: 50000, Accuracy: 0.95, Energy: 10},
	ScannerLongRange:     {Type: ScannerLongRange, MaxRange: 200000, Accuracy: 0.80, Energy: 25},
	ScannerTactical:      {Type: ScannerTactical, MaxRange: 100000, Accuracy: 0.90, Energy: 15},
	ScannerHyperspace:    {Type: ScannerHyperspace, MaxRange: 500000, Accuracy: 0.70, Energy: 50},
	ScannerCloakDetector: {Type: ScannerCloakDetector, MaxRange: 75000, Accuracy: 0.85, Energy: 30},
}

// ParseScannerType maps a textual scanner name onto the closed set.
func ParseScannerType(raw string) (ScannerType, error) {
	scannerType := ScannerType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := scannerSpecs[scannerType]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScanner, raw)
	}
	return scannerType, nil
}

// Spec returns the envelope of the scanner type.
func Spec(scannerType ScannerType) (ScannerSpec, error) {
	spec, ok := scannerSpecs[scannerType]
	if !ok {
		return ScannerSpec{}, fmt.Errorf("%w: %q", ErrUnknownScanner, scannerType)
	}
	return spec, nil
}

// ObjectKind classifies scannable objects.
type ObjectKind string

const (
	KindShip     ObjectKind = "ship"
	KindPlanet   ObjectKind = "planet"
	KindMine     ObjectKind = "mine"
	KindBeacon   ObjectKind = "beacon"
	KindWormhole ObjectKind = "wormhole"
)

// Object is a snapshot of anything a scanner can pick up.
type Object struct {
	ID       string            `json:"id"`
	Kind     ObjectKind        `json:"type"`
	Name     string            `json:"name"`
	Position galaxy.Coordinate `json:"position"`
	Class    int               `json:"ship_class,omitempty"`
	Cloaked  bool              `json:"is_cloaked"`
	Hostile  bool              `json:"is_hostile"`
	Damage   float64           `json:"damage,omitempty"`
	OwnerID  string            `json:"owner_id,omitempty"`
}

// Observer is the scanning ship.
type Observer struct {
	ID       string            `json:"id"`
	Position galaxy.Coordinate `json:"position"`
	Heading  float64           `json:"heading"`
	Energy   float64           `json:"energy"`
}

// ScanRequest selects the scanner and an optional range in parsecs.
type ScanRequest struct {
	Type  ScannerType `json:"scanner_type"`
	Range float64     `json:"range,omitempty"`
}

// ScanResult is one detected object as the observer perceives it.
type ScanResult struct {
	TargetID   string            `json:"target_id"`
	Kind       ObjectKind        `json:"target_type"`
	Name       string            `json:"name"`
	Position   galaxy.Coordinate `json:"position"`
	Distance   float64           `json:"distance"`
	Bearing    float64           `json:"bearing"`
	Sector     galaxy.Sector     `json:"sector"`
	Class      int               `json:"ship_class,omitempty"`
	Cloaked    bool              `json:"is_cloaked"`
	Hostile    bool              `json:"is_hostile"`
	Damage     float64           `json:"damage,omitempty"`
	Confidence float64           `json:"confidence"`
	Stale      bool              `json:"stale,omitempty"`
}

// ScanReport is the outcome of a player issued scan.
type ScanReport struct {
	ScannerType ScannerType  `json:"scanner_type"`
	Range       float64      `json:"scan_range"`
	EnergyUsed  float64      `json:"energy_consumed"`
	Results     []ScanResult `json:"scan_results"`
}

// DetectionChance is the probability the scanner picks up the object at the given distance.
func DetectionChance(spec ScannerSpec, obj Object, distance, maxRange float64) float64 {
	chance := spec.Accuracy
	if maxRange > 0 {
		chance *= 1 - distance/maxRange*0.3
	}
	switch obj.Kind {
	case KindShip:
		//1.- Cloaks defeat everything except the dedicated detector.
		if obj.Cloaked {
			if spec.Type == ScannerCloakDetector {
				chance *= 0.8
			} else {
				chance *= 0.2
			}
		}
		//2.- Larger hull classes return stronger echoes.
		chance *= 0.8 + float64(obj.Class)*0.05
	case KindPlanet, KindBeacon:
		chance = 1
	case KindMine:
		chance *= 0.3
	}
	return clamp01(chance)
}

const defaultLastKnownTTL = 3

type trackedContact struct {
	result ScanResult
	seenAt uint64
}

// Scanner runs the probabilistic detection model and remembers last known contacts per observer.
type Scanner struct {
	mu           sync.Mutex
	rng          combat.Rand
	lastKnownTTL uint64
	lastContacts map[string]map[string]*trackedContact
}

// Option customises the scanner.
type Option func(*Scanner)

// WithLastKnownTTL keeps lost contacts on sweeps for the given number of ticks.
func WithLastKnownTTL(ticks uint64) Option {
	return func(s *Scanner) { s.lastKnownTTL = ticks }
}

// NewScanner constructs a scanner drawing its rolls from rng.
func NewScanner(rng combat.Rand, opts ...Option) *Scanner {
	if rng == nil {
		rng = combat.NewRand(combat.SeedFor("radar"))
	}
	scanner := &Scanner{rng: rng, lastKnownTTL: defaultLastKnownTTL, lastContacts: make(map[string]map[string]*trackedContact)}
	for _, opt := range opts {
		if opt != nil {
			opt(scanner)
		}
	}
	return scanner
}

// Scan performs a powered sweep on behalf of the observer.
func (s *Scanner) Scan(observer Observer, req ScanRequest, objects []Object) (ScanReport, error) {
	spec, err := Spec(req.Type)
	if err != nil {
		return ScanReport{}, err
	}
	//1.- The observer must be able to power the sweep before anything is rolled.
	if observer.Energy < spec.Energy {
		return ScanReport{}, fmt.Errorf("%w: %s needs %.0f", ErrInsufficientEnergy, spec.Type, spec.Energy)
	}
	maxRange := spec.MaxRange
	if req.Range > 0 {
		maxRange = math.Min(req.Range, spec.MaxRange)
	}
	return ScanReport{
		ScannerType: spec.Type,
		Range:       maxRange,
		EnergyUsed:  spec.Energy,
		Results:     s.detect(observer, spec, maxRange, objects),
	}, nil
}

// Sweep is the passive scan backing AI awareness. Contacts lost since an earlier sweep
// are reported as stale with decaying confidence until the last known TTL expires.
func (s *Scanner) Sweep(observer Observer, scannerType ScannerType, maxRange float64, objects []Object, tick uint64) []ScanResult {
	spec, err := Spec(scannerType)
	if err != nil {
		return nil
	}
	if !(maxRange > 0) {
		maxRange = spec.MaxRange
	}
	live := s.detect(observer, spec, maxRange, objects)

	s.mu.Lock()
	defer s.mu.Unlock()
	tracked := s.ensureTrackerLocked(observer.ID)
	touched := make(map[string]struct{}, len(live))
	for _, result := range live {
		tracked[result.TargetID] = &trackedContact{result: result, seenAt: tick}
		touched[result.TargetID] = struct{}{}
	}
	results := live
	for targetID, contact := range tracked {
		if _, ok := touched[targetID]; ok {
			continue
		}
		age := tick - contact.seenAt
		if tick < contact.seenAt || age > s.lastKnownTTL {
			delete(tracked, targetID)
			continue
		}
		//1.- Surface the cached contact flagged stale so the AI keeps a track on it.
		stale := contact.result
		stale.Stale = true
		stale.Confidence = s.confidenceForAge(age) * contact.result.Confidence
		results = append(results, stale)
	}
	if len(tracked) == 0 {
		delete(s.lastContacts, observer.ID)
	}
	sortResults(results)
	return results
}

// Forget drops every remembered contact of the observer and every memory of the ship as a target.
func (s *Scanner) Forget(shipID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastContacts, shipID)
	for observer, tracker := range s.lastContacts {
		delete(tracker, shipID)
		if len(tracker) == 0 {
			delete(s.lastContacts, observer)
		}
	}
}

func (s *Scanner) detect(observer Observer, spec ScannerSpec, maxRange float64, objects []Object) []ScanResult {
	results := make([]ScanResult, 0)
	for _, obj := range objects {
		if obj.ID == "" || obj.ID == observer.ID {
			continue
		}
		distance := galaxy.Range(observer.Position, obj.Position)
		if distance > maxRange {
			continue
		}
		//1.- One Bernoulli trial per object decides visibility.
		if s.rng.Float64() >= DetectionChance(spec, obj, distance, maxRange) {
			continue
		}
		//2.- Perturb the readings in proportion to the scanner's inaccuracy.
		inaccuracy := 1 - spec.Accuracy
		perceived := distance + distance*inaccuracy*0.1*(s.rng.Float64()-0.5)
		bearing := galaxy.Bearing(observer.Position, obj.Position, observer.Heading) + inaccuracy*10*(s.rng.Float64()-0.5)
		results = append(results, ScanResult{
			TargetID:   obj.ID,
			Kind:       obj.Kind,
			Name:       obj.Name,
			Position:   obj.Position,
			Distance:   math.Max(0, perceived),
			Bearing:    galaxy.NormalizeBearing(bearing),
			Sector:     galaxy.SectorOf(obj.Position),
			Class:      obj.Class,
			Cloaked:    obj.Cloaked,
			Hostile:    obj.Hostile,
			Damage:     obj.Damage,
			Confidence: spec.Accuracy,
		})
	}
	sortResults(results)
	return results
}

func (s *Scanner) ensureTrackerLocked(observerID string) map[string]*trackedContact {
	tracker, ok := s.lastContacts[observerID]
	if !ok {
		tracker = make(map[string]*trackedContact)
		s.lastContacts[observerID] = tracker
	}
	return tracker
}

func (s *Scanner) confidenceForAge(age uint64) float64 {
	if s.lastKnownTTL == 0 {
		return 0
	}
	ratio := 1 - float64(age)/float64(s.lastKnownTTL+1)
	return math.Max(0.1, ratio)
}

func sortResults(results []ScanResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].TargetID < results[j].TargetID
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
