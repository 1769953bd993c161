package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/battle"
	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/destruct"
)

// SchemaVersion tags every event so journal readers can reject unknown layouts.
const SchemaVersion = "1.0.0"

// DamageDetails captures the damage a combat event inflicted.
type DamageDetails struct {
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
	Critical  bool    `json:"critical"`
	Destroyed bool    `json:"destroyed"`
}

// Event is one observable outcome of the simulation core.
type Event struct {
	SchemaVersion string            `json:"schema_version"`
	ID            string            `json:"event_id"`
	Kind          Kind              `json:"kind"`
	Tick          uint64            `json:"tick"`
	Loop          string            `json:"loop,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
	ShipID        string            `json:"ship_id,omitempty"`
	TargetID      string            `json:"target_id,omitempty"`
	Message       string            `json:"message,omitempty"`
	Damage        *DamageDetails    `json:"damage,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Clone duplicates the nested values so receivers own an independent copy.
func (e Event) Clone() Event {
	clone := e
	if e.Damage != nil {
		damage := *e.Damage
		clone.Damage = &damage
	}
	clone.Metadata = cleanMetadata(e.Metadata)
	return clone
}

// New stamps a fresh event identifier and schema version.
func New(kind Kind, tick uint64, at time.Time) Event {
	return Event{SchemaVersion: SchemaVersion, ID: uuid.NewString(), Kind: kind, Tick: tick, OccurredAt: at}
}

// FromFire converts a resolved combat action into a combat event.
func FromFire(tick uint64, at time.Time, attackerID, targetID string, fire combat.FireResult) Event {
	event := New(KindCombat, tick, at)
	event.ShipID = attackerID
	event.TargetID = targetID
	event.Message = fire.Message
	metadata := map[string]string{
		"action":  string(fire.Action),
		"success": strconv.FormatBool(fire.Success),
		"hit":     strconv.FormatBool(fire.Hit),
	}
	if fire.Weapon != "" {
		metadata["weapon"] = string(fire.Weapon)
	}
	if fire.Range > 0 {
		metadata["range"] = strconv.FormatFloat(fire.Range, 'f', 0, 64)
	}
	if fire.Spoofed {
		metadata["spoofed"] = "true"
	}
	if fire.TravelTicks > 0 {
		metadata["travel_ticks"] = strconv.Itoa(fire.TravelTicks)
	}
	//1.- Attach the damage report so journal readers can rebuild the outcome.
	if fire.Report != nil {
		for key, value := range fire.Report.Metadata() {
			metadata[key] = value
		}
		event.Damage = &DamageDetails{
			Amount:    fire.Report.TotalDamage,
			Type:      string(fire.Report.DamageType),
			Critical:  fire.Report.Critical,
			Destroyed: fire.Report.ShipDestroyed,
		}
	}
	event.Metadata = cleanMetadata(metadata)
	return event
}

// FromDamage records damage that did not come from a weapon, e.g. mines and blasts.
func FromDamage(tick uint64, at time.Time, sourceID string, report combat.DamageReport) Event {
	event := New(KindCombat, tick, at)
	event.ShipID = sourceID
	event.TargetID = report.TargetID
	event.Message = fmt.Sprintf("%s damage %.1f", report.DamageType, report.TotalDamage)
	event.Damage = &DamageDetails{
		Amount:    report.TotalDamage,
		Type:      string(report.DamageType),
		Critical:  report.Critical,
		Destroyed: report.ShipDestroyed,
	}
	event.Metadata = cleanMetadata(report.Metadata())
	return event
}

// FromBattle converts a battle summary into a battle event.
func FromBattle(tick uint64, summary battle.Summary) Event {
	event := New(KindBattle, tick, summary.EndedAt)
	event.ShipID = summary.AttackerID
	event.TargetID = summary.DefenderID
	event.Message = "battle ended: " + summary.EndReason
	event.Metadata = map[string]string{
		"end_reason":            summary.EndReason,
		"duration_ticks":        strconv.Itoa(summary.DurationTicks),
		"duration_seconds":      strconv.FormatFloat(summary.DurationSeconds, 'f', 1, 64),
		"attacker_damage_dealt": strconv.FormatFloat(summary.AttackerDamageDealt, 'f', 1, 64),
		"defender_damage_dealt": strconv.FormatFloat(summary.DefenderDamageDealt, 'f', 1, 64),
	}
	return event
}

// FromDetonation records a self-destruct blast.
func FromDetonation(tick uint64, at time.Time, detonation destruct.Detonation, victims int) Event {
	event := New(KindDetonation, tick, at)
	event.ShipID = detonation.ShipID
	event.Message = fmt.Sprintf("self-destruct detonation caught %d ships", victims)
	event.Damage = &DamageDetails{Amount: detonation.Damage, Type: string(combat.DamageTypeSelfDestruct), Destroyed: true}
	event.Metadata = map[string]string{
		"radius": strconv.FormatFloat(detonation.Radius, 'f', 0, 64),
		"x":      strconv.FormatFloat(detonation.Position.X, 'f', 3, 64),
		"y":      strconv.FormatFloat(detonation.Position.Y, 'f', 3, 64),
	}
	return event
}

// FromDecision records an AI decision as it is executed.
func FromDecision(tick uint64, at time.Time, decision ai.Decision) Event {
	event := New(KindDecision, tick, at)
	event.ShipID = decision.ShipID
	event.TargetID = decision.TargetID
	event.Message = decision.Reasoning
	event.Metadata = map[string]string{
		"action":   string(decision.Action),
		"priority": strconv.FormatFloat(decision.Priority, 'f', 2, 64),
	}
	return event
}

// Lifecycle records ship lifecycle and tactical state changes.
func Lifecycle(kind Kind, tick uint64, at time.Time, shipID, message string) Event {
	event := New(kind, tick, at)
	event.ShipID = shipID
	event.Message = message
	return event
}

func cleanMetadata(metadata map[string]string) map[string]string {
	//1.- Drop empty keys and never hand out the caller's map.
	if len(metadata) == 0 {
		return nil
	}
	cleaned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if key == "" {
			continue
		}
		cleaned[key] = value
	}
	return cleaned
}
