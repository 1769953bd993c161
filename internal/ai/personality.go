// Package ai decides what computer controlled ships do on every Cybertron tick.
package ai

import (
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"gopkg.in/yaml.v3"
)

// Personality scales how eagerly a ship engages.
type Personality string

const (
	PersonalityAggressive Personality = "aggressive"
	PersonalityDefensive  Personality = "defensive"
	PersonalityBalanced   Personality = "balanced"
	PersonalityCoward     Personality = "coward"
	PersonalityBerserker  Personality = "berserker"
	PersonalityTactical   Personality = "tactical"
)

var personalities = []Personality{
	PersonalityAggressive,
	PersonalityDefensive,
	PersonalityBalanced,
	PersonalityCoward,
	PersonalityBerserker,
	PersonalityTactical,
}

// ParsePersonality maps a textual personality onto the closed set.
func ParsePersonality(raw string) (Personality, error) {
	candidate := Personality(strings.ToLower(strings.TrimSpace(raw)))
	for _, personality := range personalities {
		if personality == candidate {
			return personality, nil
		}
	}
	return "", fmt.Errorf("unknown personality %q", raw)
}

// Modifiers are the per personality multipliers applied during a decision.
type Modifiers struct {
	Aggression       float64 `yaml:"aggression" json:"aggression"`
	Caution          float64 `yaml:"caution" json:"caution"`
	EngagementRange  float64 `yaml:"engagement_range" json:"engagement_range"`
	RetreatThreshold float64 `yaml:"retreat_threshold" json:"retreat_threshold"`
}

// neutralModifiers apply to personalities missing from the table.
var neutralModifiers = Modifiers{Aggression: 1, Caution: 1, EngagementRange: 1, RetreatThreshold: 0.8}

type personalityFile struct {
	Personalities map[Personality]Modifiers `yaml:"personalities"`
}

//go:embed personalities.yaml
var personalityPayload []byte

var (
	personalityOnce sync.Once
	personalityData map[Personality]Modifiers
	personalityErr  error
)

// ModifiersFor resolves the multipliers for the personality.
func ModifiersFor(personality Personality) Modifiers {
	personalityOnce.Do(func() {
		//1.- Decode the embedded table once; every personality must be present.
		personalityData, personalityErr = parsePersonalities(personalityPayload)
	})
	if personalityErr != nil {
		panic(personalityErr)
	}
	if modifiers, ok := personalityData[personality]; ok {
		return modifiers
	}
	return neutralModifiers
}

func parsePersonalities(payload []byte) (map[Personality]Modifiers, error) {
	var decoded personalityFile
	if err := yaml.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode personalities: %w", err)
	}
	for _, personality := range personalities {
		if _, ok := decoded.Personalities[personality]; !ok {
			return nil, fmt.Errorf("personality %q missing from table", personality)
		}
	}
	return decoded.Personalities, nil
}

// State is a node of the per ship decision machine.
type State string

const (
	StateIdle     State = "idle"
	StatePatrol   State = "patrol"
	StateHunt     State = "hunt"
	StateAttack   State = "attack"
	StateRetreat  State = "retreat"
	StateDefend   State = "defend"
	StateRepair   State = "repair"
	StateResupply State = "resupply"
)

// ParseState maps a textual state onto the closed set.
func ParseState(raw string) (State, error) {
	state := State(strings.ToLower(strings.TrimSpace(raw)))
	switch state {
	case StateIdle, StatePatrol, StateHunt, StateAttack, StateRetreat, StateDefend, StateRepair, StateResupply:
		return state, nil
	default:
		return "", fmt.Errorf("unknown ai state %q", raw)
	}
}
