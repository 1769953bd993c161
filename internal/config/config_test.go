package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogPath, cfg.Logging.Path)
	assert.Equal(t, DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	assert.Equal(t, DefaultMovementInterval, cfg.Ticks.MovementInterval)
	assert.Equal(t, DefaultShipSystemsInterval, cfg.Ticks.ShipSystemsInterval)
	assert.Equal(t, DefaultCybertronInterval, cfg.Ticks.CybertronInterval)
	assert.Equal(t, DefaultPlanetInterval, cfg.Ticks.PlanetInterval)
	assert.True(t, cfg.Ticks.MovementEnabled)
	assert.Equal(t, 1, cfg.Ticks.MovementStride)
	assert.Equal(t, DefaultUniverseMax, cfg.Galaxy.UniverseMax)
	assert.True(t, cfg.Galaxy.Wrap)
	assert.Equal(t, DefaultBattleRange, cfg.Combat.BattleRange)
	assert.Equal(t, DefaultBattleTimeout, cfg.Combat.BattleTimeout)
	assert.Equal(t, DefaultLockRange, cfg.Combat.LockRange)
	assert.Equal(t, DefaultLockBaseTime, cfg.Combat.LockBaseTime)
	assert.Equal(t, DefaultGRPCAddr, cfg.GRPC.Address)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
	assert.Empty(t, cfg.Snapshot.Path)
	assert.Equal(t, DefaultSnapshotInterval, cfg.Snapshot.Interval)
	assert.Zero(t, cfg.AI.Population)
	assert.Equal(t, DefaultMaxDecisionsPerTick, cfg.AI.MaxDecisionsPerTick)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simcore.yaml")
	body := `
log:
  level: debug
ticks:
  movement_interval: 250ms
  planet_enabled: false
galaxy:
  wrap: false
combat:
  seed: "match-7"
ai:
  cybertron_population: 12
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Ticks.MovementInterval)
	assert.False(t, cfg.Ticks.PlanetEnabled)
	assert.False(t, cfg.Galaxy.Wrap)
	assert.Equal(t, "match-7", cfg.Combat.Seed)
	assert.Equal(t, 12, cfg.AI.Population)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GE_LOG_LEVEL", "warn")
	t.Setenv("GE_TICKS_CYBERTRON_INTERVAL", "3s")
	t.Setenv("GE_GRPC_SHARED_SECRET", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3*time.Second, cfg.Ticks.CybertronInterval)
	assert.Equal(t, "hunter2", cfg.GRPC.SharedSecret)
}

func TestLoad_AccumulatesProblems(t *testing.T) {
	t.Setenv("GE_TICKS_MOVEMENT_INTERVAL", "soon")
	t.Setenv("GE_COMBAT_BATTLE_RANGE", "-5")
	t.Setenv("GE_ARCHIVE_ENABLED", "true")
	t.Setenv("GE_ARCHIVE_DRIVER", "mongo")
	t.Setenv("GE_AI_MAX_DECISIONS_PER_TICK", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticks.movement_interval")
	assert.Contains(t, err.Error(), "combat.battle_range")
	assert.Contains(t, err.Error(), "archive.driver")
	assert.Contains(t, err.Error(), "ai.max_decisions_per_tick")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/simcore.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
