package archive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Models lists every table the archive migrates.
var Models = []interface{}{
	&BattleRecord{},
	&DamageRecord{},
}

// BattleRecord is one finished battle.
type BattleRecord struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	AttackerID      string    `json:"attackerId" gorm:"size:64;index:idx_battle_attacker"`
	DefenderID      string    `json:"defenderId" gorm:"size:64;index:idx_battle_defender"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt" gorm:"index:idx_battle_ended_at"`
	DurationSeconds float64   `json:"durationSeconds"`
	DurationTicks   int       `json:"durationTicks"`
	AttackerDamage  float64   `json:"attackerDamage"`
	DefenderDamage  float64   `json:"defenderDamage"`
	EndReason       string    `json:"endReason" gorm:"size:32"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (b *BattleRecord) TableName() string {
	return "battle_records"
}

// BeforeCreate assigns a random identifier to new rows.
func (b *BattleRecord) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// DamageRecord is one damage application taken from the event stream.
type DamageRecord struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	EventID    string         `json:"eventId" gorm:"size:36;uniqueIndex:idx_damage_event"`
	Tick       uint64         `json:"tick" gorm:"index:idx_damage_tick"`
	OccurredAt time.Time      `json:"occurredAt"`
	SourceID   string         `json:"sourceId" gorm:"size:64;index:idx_damage_source"`
	TargetID   string         `json:"targetId" gorm:"size:64;index:idx_damage_target"`
	DamageType string         `json:"damageType" gorm:"size:32"`
	Amount     float64        `json:"amount"`
	Critical   bool           `json:"critical"`
	Destroyed  bool           `json:"destroyed"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (d *DamageRecord) TableName() string {
	return "damage_records"
}

// BeforeCreate assigns a random identifier to new rows.
func (d *DamageRecord) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
