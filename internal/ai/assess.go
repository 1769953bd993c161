package ai

import (
	"math"

	"github.com/talktojer/ge-sub000/internal/radar"
)

const (
	hostilePlanetThreat = 0.3
	mineThreat          = 0.7
)

// Contact is one classified object in a situation.
type Contact struct {
	ID       string           `json:"id"`
	Kind     radar.ObjectKind `json:"type"`
	Distance float64          `json:"distance"`
	Threat   float64          `json:"threat_level,omitempty"`
	Stale    bool             `json:"stale,omitempty"`
}

// Situation is the tactical picture an AI ship decides on.
type Situation struct {
	Enemies      []Contact `json:"enemies"`
	Allies       []Contact `json:"allies"`
	Threats      []Contact `json:"threats"`
	Resources    []Contact `json:"resources"`
	ThreatLevel  float64   `json:"threat_level"`
	ClosestEnemy *Contact  `json:"closest_enemy,omitempty"`
}

// EnemyCount reports the number of hostile contacts.
func (s Situation) EnemyCount() int { return len(s.Enemies) }

// Enemy finds a hostile contact by id.
func (s Situation) Enemy(id string) (Contact, bool) {
	for _, enemy := range s.Enemies {
		if enemy.ID == id {
			return enemy, true
		}
	}
	return Contact{}, false
}

// ClosestResource returns the nearest friendly planet, if any.
func (s Situation) ClosestResource() (Contact, bool) {
	if len(s.Resources) == 0 {
		return Contact{}, false
	}
	closest := s.Resources[0]
	for _, resource := range s.Resources[1:] {
		if resource.Distance < closest.Distance {
			closest = resource
		}
	}
	return closest, true
}

// Assess classifies the scanner output of one ship.
func Assess(ship Ship, results []radar.ScanResult) Situation {
	situation := Situation{}
	for _, result := range results {
		if result.TargetID == ship.ID {
			continue
		}
		contact := Contact{ID: result.TargetID, Kind: result.Kind, Distance: result.Distance, Stale: result.Stale}
		switch result.Kind {
		case radar.KindShip:
			if result.Hostile {
				contact.Threat = EnemyThreat(ship, result)
				situation.Enemies = append(situation.Enemies, contact)
			} else {
				situation.Allies = append(situation.Allies, contact)
			}
		case radar.KindMine:
			contact.Threat = mineThreat
			situation.Threats = append(situation.Threats, contact)
		case radar.KindPlanet:
			if result.Hostile {
				contact.Threat = hostilePlanetThreat
				situation.Enemies = append(situation.Enemies, contact)
			} else {
				situation.Resources = append(situation.Resources, contact)
			}
		}
	}
	for _, contact := range append(append([]Contact(nil), situation.Enemies...), situation.Threats...) {
		situation.ThreatLevel += contact.Threat
	}
	for i := range situation.Enemies {
		if situation.ClosestEnemy == nil || situation.Enemies[i].Distance < situation.ClosestEnemy.Distance {
			closest := situation.Enemies[i]
			situation.ClosestEnemy = &closest
		}
	}
	return situation
}

// EnemyThreat scores a hostile ship relative to the assessing ship.
func EnemyThreat(ship Ship, enemy radar.ScanResult) float64 {
	ownClass := ship.Class
	if ownClass <= 0 {
		ownClass = 1
	}
	enemyClass := enemy.Class
	if enemyClass <= 0 {
		enemyClass = 1
	}
	//1.- Heavier hulls are more dangerous, close ones even more so.
	threat := 0.5 * float64(enemyClass) / float64(ownClass)
	switch {
	case enemy.Distance < 50000:
		threat += 0.3
	case enemy.Distance < 100000:
		threat += 0.1
	}
	//2.- A damaged enemy loses up to half of its threat.
	threat *= 1 - enemy.Damage/200
	return math.Min(1, math.Max(0.1, threat))
}
