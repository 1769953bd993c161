// Package archive keeps finished battles and damage applications in a relational store
// so operators can query combat history after the in-memory registries forgot it.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talktojer/ge-sub000/internal/battle"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/logging"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SubscriberID is the durable stream subscriber name used by the archive.
const SubscriberID = "archive"

// ErrUnknownDriver is returned for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("unknown archive driver")

// Config selects and locates the backing database.
type Config struct {
	Driver string
	// Path is the sqlite file; empty keeps the database in memory.
	Path string
	DSN  string
}

// ShipTotals aggregates the archived history of one ship.
type ShipTotals struct {
	ShipID      string  `json:"shipId"`
	Battles     int64   `json:"battles"`
	DamageDealt float64 `json:"damageDealt"`
	DamageTaken float64 `json:"damageTaken"`
	Destroyed   int64   `json:"destroyed"`
}

// Archive persists battle summaries and damage events.
type Archive struct {
	db     *gorm.DB
	logger *logging.Logger

	mu     sync.Mutex
	sub    *events.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, logger *logging.Logger) (*Archive, error) {
	if logger == nil {
		logger = logging.L()
	}
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		db, err = openSQLite(cfg.Path)
	case DriverPostgres:
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	logger.Info("archive ready", logging.String("driver", db.Dialector.Name()))
	return &Archive{db: db, logger: logger}, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	//1.- One connection keeps an in-memory database alive and serialises file writes.
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	return db, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn must be provided")
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

// RecordBattle stores a finished battle.
func (a *Archive) RecordBattle(summary battle.Summary) error {
	record := BattleRecord{
		AttackerID:      summary.AttackerID,
		DefenderID:      summary.DefenderID,
		StartedAt:       summary.StartedAt,
		EndedAt:         summary.EndedAt,
		DurationSeconds: summary.DurationSeconds,
		DurationTicks:   summary.DurationTicks,
		AttackerDamage:  summary.AttackerDamageDealt,
		DefenderDamage:  summary.DefenderDamageDealt,
		EndReason:       summary.EndReason,
	}
	if err := a.db.Create(&record).Error; err != nil {
		return fmt.Errorf("archive battle: %w", err)
	}
	return nil
}

// RecordEvent stores the damage carried by an event. Events without damage are ignored
// and redelivered events are stored once.
func (a *Archive) RecordEvent(ctx context.Context, event events.Event) (bool, error) {
	if event.Damage == nil || event.ID == "" {
		return false, nil
	}
	details := datatypes.JSON("{}")
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return false, fmt.Errorf("encode damage details: %w", err)
		}
		details = datatypes.JSON(data)
	}
	record := DamageRecord{
		EventID:    event.ID,
		Tick:       event.Tick,
		OccurredAt: event.OccurredAt,
		SourceID:   event.ShipID,
		TargetID:   event.TargetID,
		DamageType: event.Damage.Type,
		Amount:     event.Damage.Amount,
		Critical:   event.Damage.Critical,
		Destroyed:  event.Damage.Destroyed,
		Details:    details,
	}
	result := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("archive damage: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Start consumes the event stream and archives damage events until Close.
func (a *Archive) Start(ctx context.Context, stream *events.Stream) error {
	if stream == nil {
		return errors.New("stream must be provided")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return errors.New("archive already consuming")
	}
	ctx, cancel := context.WithCancel(ctx)
	sub, err := stream.Subscribe(ctx, SubscriberID, 256)
	if err != nil {
		cancel()
		return err
	}
	a.sub, a.cancel, a.done = sub, cancel, make(chan struct{})
	go a.consume(ctx, sub, a.done)
	return nil
}

func (a *Archive) consume(ctx context.Context, sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := a.RecordEvent(ctx, envelope.Event); err != nil {
				//1.- Leave the event unacknowledged so it is redelivered on the next start.
				a.logger.Error("archive event failed", logging.Error(err), logging.String("event_id", envelope.Event.ID))
				continue
			}
			if err := sub.Ack(envelope.Sequence); err != nil && !errors.Is(err, events.ErrOutOfOrderAck) {
				a.logger.Warn("archive ack failed", logging.Error(err))
			}
		}
	}
}

// Battles returns the most recent battles the ship took part in, newest first.
func (a *Archive) Battles(ctx context.Context, shipID string, limit int) ([]BattleRecord, error) {
	query := a.db.WithContext(ctx).Order("ended_at DESC")
	if shipID != "" {
		query = query.Where("attacker_id = ? OR defender_id = ?", shipID, shipID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []BattleRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query battles: %w", err)
	}
	return records, nil
}

// Damage returns the damage the ship received, oldest first.
func (a *Archive) Damage(ctx context.Context, targetID string, limit int) ([]DamageRecord, error) {
	query := a.db.WithContext(ctx).Where("target_id = ?", targetID).Order("tick ASC, occurred_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []DamageRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query damage: %w", err)
	}
	return records, nil
}

// Totals aggregates the archived history of one ship.
func (a *Archive) Totals(ctx context.Context, shipID string) (ShipTotals, error) {
	totals := ShipTotals{ShipID: shipID}
	db := a.db.WithContext(ctx)
	if err := db.Model(&BattleRecord{}).
		Where("attacker_id = ? OR defender_id = ?", shipID, shipID).
		Count(&totals.Battles).Error; err != nil {
		return ShipTotals{}, fmt.Errorf("count battles: %w", err)
	}
	if err := db.Model(&DamageRecord{}).Select("COALESCE(SUM(amount), 0)").
		Where("source_id = ?", shipID).Row().Scan(&totals.DamageDealt); err != nil {
		return ShipTotals{}, fmt.Errorf("sum damage dealt: %w", err)
	}
	if err := db.Model(&DamageRecord{}).Select("COALESCE(SUM(amount), 0)").
		Where("target_id = ?", shipID).Row().Scan(&totals.DamageTaken); err != nil {
		return ShipTotals{}, fmt.Errorf("sum damage taken: %w", err)
	}
	if err := db.Model(&DamageRecord{}).
		Where("target_id = ? AND destroyed = ?", shipID, true).
		Count(&totals.Destroyed).Error; err != nil {
		return ShipTotals{}, fmt.Errorf("count destructions: %w", err)
	}
	return totals, nil
}

// Close stops consuming and releases the database handle.
func (a *Archive) Close() error {
	a.mu.Lock()
	sub, cancel, done := a.sub, a.cancel, a.done
	a.sub = nil
	a.mu.Unlock()
	if sub != nil {
		sub.Close()
		cancel()
		<-done
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
