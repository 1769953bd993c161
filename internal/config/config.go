package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces every environment override, e.g. GE_LOG_LEVEL.
	EnvPrefix = "GE"

	// DefaultLogLevel controls verbosity for simulation logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "simcore.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultMovementInterval is the fast cadence (movement, countdowns, locks, battle sweep).
	DefaultMovementInterval = time.Second
	// DefaultShipSystemsInterval is the medium cadence for regeneration and repairs.
	DefaultShipSystemsInterval = 6 * time.Second
	// DefaultCybertronInterval is the medium cadence for AI decisions.
	DefaultCybertronInterval = 6 * time.Second
	// DefaultPlanetInterval is the slow planetary cadence.
	DefaultPlanetInterval = 55 * time.Second
	// DefaultErrorBackoff pauses a loop after a failed iteration.
	DefaultErrorBackoff = time.Second
	// DefaultMovementStride processes every ship on every movement tick.
	DefaultMovementStride = 1

	// DefaultUniverseMax bounds the galaxy on both axes.
	DefaultUniverseMax = 300.0
	// DefaultGalaxyWrap makes ships leaving one edge re-enter on the opposite edge.
	DefaultGalaxyWrap = true

	// DefaultBattleRange is the maximum distance in parsecs for starting a battle.
	DefaultBattleRange = 200000.0
	// DefaultBattleTimeout ends battles without activity (50 ticks of 2 seconds).
	DefaultBattleTimeout = 100 * time.Second
	// DefaultLockRange is the maximum lock range in parsecs.
	DefaultLockRange = 150000.0
	// DefaultLockBaseTime is the acquisition time in ticks before modifiers.
	DefaultLockBaseTime = 5

	// DefaultGRPCAddr is where the collaborator bridge listens.
	DefaultGRPCAddr = ":43129"

	// DefaultJournalDir holds combat journals.
	DefaultJournalDir = "journal"
	// DefaultArchiveDriver selects the archive backend.
	DefaultArchiveDriver = "sqlite"
	// DefaultArchivePath is the sqlite database file.
	DefaultArchivePath = "battles.db"
	// DefaultTelemetryInterval controls how often tick statistics are exported.
	DefaultTelemetryInterval = time.Minute

	// DefaultSnapshotInterval controls how often the world snapshot is persisted.
	DefaultSnapshotInterval = 30 * time.Second

	// DefaultMaxDecisionsPerTick bounds the AI ships deciding in one cybertron tick.
	DefaultMaxDecisionsPerTick = 64
)

// Config captures all runtime tunables for the simulation core.
type Config struct {
	Logging   LoggingConfig
	Ticks     TickConfig
	Galaxy    GalaxyConfig
	Combat    CombatConfig
	GRPC      GRPCConfig
	Journal   JournalConfig
	Archive   ArchiveConfig
	Telemetry TelemetryConfig
	Snapshot  SnapshotConfig
	AI        AIConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// TickConfig describes the four scheduler loops.
type TickConfig struct {
	MovementInterval    time.Duration
	ShipSystemsInterval time.Duration
	CybertronInterval   time.Duration
	PlanetInterval      time.Duration
	MovementEnabled     bool
	ShipSystemsEnabled  bool
	CybertronEnabled    bool
	PlanetEnabled       bool
	MovementStride      int
	ErrorBackoff        time.Duration
}

// GalaxyConfig bounds the playfield.
type GalaxyConfig struct {
	UniverseMax float64
	Wrap        bool
}

// CombatConfig tunes the tactical registries.
type CombatConfig struct {
	Seed          string
	BattleRange   float64
	BattleTimeout time.Duration
	LockRange     float64
	LockBaseTime  int
}

// GRPCConfig configures the collaborator bridge.
type GRPCConfig struct {
	Address      string
	SharedSecret string
}

// JournalConfig configures the compressed combat journal.
type JournalConfig struct {
	Enabled bool
	Dir     string
}

// ArchiveConfig selects the battle archive backend.
type ArchiveConfig struct {
	Enabled bool
	Driver  string
	Path    string
	DSN     string
}

// TelemetryConfig configures the tick statistics export.
type TelemetryConfig struct {
	Dir      string
	Interval time.Duration
}

// SnapshotConfig configures world persistence across restarts. An empty path disables it.
type SnapshotConfig struct {
	Path     string
	Interval time.Duration
}

// AIConfig sizes the Cybertron fleet.
type AIConfig struct {
	// Population is the combined number of players and Cybertrons the fleet is scaled towards.
	Population          int
	MaxDecisionsPerTick int
}

// SetDefaults registers every default on the provided viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.path", DefaultLogPath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAgeDays)
	v.SetDefault("log.compress", DefaultLogCompress)

	v.SetDefault("ticks.movement_interval", DefaultMovementInterval.String())
	v.SetDefault("ticks.ship_systems_interval", DefaultShipSystemsInterval.String())
	v.SetDefault("ticks.cybertron_interval", DefaultCybertronInterval.String())
	v.SetDefault("ticks.planet_interval", DefaultPlanetInterval.String())
	v.SetDefault("ticks.movement_enabled", true)
	v.SetDefault("ticks.ship_systems_enabled", true)
	v.SetDefault("ticks.cybertron_enabled", true)
	v.SetDefault("ticks.planet_enabled", true)
	v.SetDefault("ticks.movement_stride", DefaultMovementStride)
	v.SetDefault("ticks.error_backoff", DefaultErrorBackoff.String())

	v.SetDefault("galaxy.universe_max", DefaultUniverseMax)
	v.SetDefault("galaxy.wrap", DefaultGalaxyWrap)

	v.SetDefault("combat.seed", "")
	v.SetDefault("combat.battle_range", DefaultBattleRange)
	v.SetDefault("combat.battle_timeout", DefaultBattleTimeout.String())
	v.SetDefault("combat.lock_range", DefaultLockRange)
	v.SetDefault("combat.lock_base_time", DefaultLockBaseTime)

	v.SetDefault("grpc.address", DefaultGRPCAddr)
	v.SetDefault("grpc.shared_secret", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dir", DefaultJournalDir)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.driver", DefaultArchiveDriver)
	v.SetDefault("archive.path", DefaultArchivePath)
	v.SetDefault("archive.dsn", "")

	v.SetDefault("telemetry.dir", "")
	v.SetDefault("telemetry.interval", DefaultTelemetryInterval.String())

	v.SetDefault("snapshot.path", "")
	v.SetDefault("snapshot.interval", DefaultSnapshotInterval.String())

	v.SetDefault("ai.cybertron_population", 0)
	v.SetDefault("ai.max_decisions_per_tick", DefaultMaxDecisionsPerTick)
}

// Load reads the configuration from an optional file plus GE_* environment variables,
// applying defaults and returning one descriptive error for every invalid override.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper materialises and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("viper instance is nil")
	}
	var problems []string

	duration := func(key string, allowZero bool) time.Duration {
		raw := strings.TrimSpace(v.GetString(key))
		value, err := time.ParseDuration(raw)
		if err != nil || value < 0 || (!allowZero && value == 0) {
			problems = append(problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
			return 0
		}
		return value
	}
	positiveInt := func(key string, allowZero bool) int {
		value := v.GetInt(key)
		if value < 0 || (!allowZero && value == 0) {
			problems = append(problems, fmt.Sprintf("%s must be a positive integer, got %d", key, value))
		}
		return value
	}
	positiveFloat := func(key string) float64 {
		value := v.GetFloat64(key)
		if !(value > 0) {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %v", key, value))
		}
		return value
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(v.GetString("log.level")),
			Path:       strings.TrimSpace(v.GetString("log.path")),
			MaxSizeMB:  positiveInt("log.max_size_mb", false),
			MaxBackups: positiveInt("log.max_backups", true),
			MaxAgeDays: positiveInt("log.max_age_days", true),
			Compress:   v.GetBool("log.compress"),
		},
		Ticks: TickConfig{
			MovementInterval:    duration("ticks.movement_interval", false),
			ShipSystemsInterval: duration("ticks.ship_systems_interval", false),
			CybertronInterval:   duration("ticks.cybertron_interval", false),
			PlanetInterval:      duration("ticks.planet_interval", false),
			MovementEnabled:     v.GetBool("ticks.movement_enabled"),
			ShipSystemsEnabled:  v.GetBool("ticks.ship_systems_enabled"),
			CybertronEnabled:    v.GetBool("ticks.cybertron_enabled"),
			PlanetEnabled:       v.GetBool("ticks.planet_enabled"),
			MovementStride:      positiveInt("ticks.movement_stride", false),
			ErrorBackoff:        duration("ticks.error_backoff", true),
		},
		Galaxy: GalaxyConfig{
			UniverseMax: positiveFloat("galaxy.universe_max"),
			Wrap:        v.GetBool("galaxy.wrap"),
		},
		Combat: CombatConfig{
			Seed:          strings.TrimSpace(v.GetString("combat.seed")),
			BattleRange:   positiveFloat("combat.battle_range"),
			BattleTimeout: duration("combat.battle_timeout", false),
			LockRange:     positiveFloat("combat.lock_range"),
			LockBaseTime:  positiveInt("combat.lock_base_time", false),
		},
		GRPC: GRPCConfig{
			Address:      strings.TrimSpace(v.GetString("grpc.address")),
			SharedSecret: strings.TrimSpace(v.GetString("grpc.shared_secret")),
		},
		Journal: JournalConfig{
			Enabled: v.GetBool("journal.enabled"),
			Dir:     strings.TrimSpace(v.GetString("journal.dir")),
		},
		Archive: ArchiveConfig{
			Enabled: v.GetBool("archive.enabled"),
			Driver:  strings.ToLower(strings.TrimSpace(v.GetString("archive.driver"))),
			Path:    strings.TrimSpace(v.GetString("archive.path")),
			DSN:     strings.TrimSpace(v.GetString("archive.dsn")),
		},
		Telemetry: TelemetryConfig{
			Dir:      strings.TrimSpace(v.GetString("telemetry.dir")),
			Interval: duration("telemetry.interval", false),
		},
		Snapshot: SnapshotConfig{
			Path:     strings.TrimSpace(v.GetString("snapshot.path")),
			Interval: duration("snapshot.interval", false),
		},
		AI: AIConfig{
			Population:          positiveInt("ai.cybertron_population", true),
			MaxDecisionsPerTick: positiveInt("ai.max_decisions_per_tick", false),
		},
	}

	if cfg.Logging.Path == "" {
		problems = append(problems, "log.path must not be empty")
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		problems = append(problems, "journal.dir is required when the journal is enabled")
	}
	if cfg.Archive.Enabled {
		switch cfg.Archive.Driver {
		case "sqlite":
			if cfg.Archive.Path == "" {
				problems = append(problems, "archive.path is required for the sqlite driver")
			}
		case "postgres":
			if cfg.Archive.DSN == "" {
				problems = append(problems, "archive.dsn is required for the postgres driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("archive.driver must be sqlite or postgres, got %q", cfg.Archive.Driver))
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}
