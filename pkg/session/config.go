package session

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds session storage configuration from YAML.
type Config struct {
	// Backend is one of memory, file, sqlite, redis.
	Backend string `yaml:"backend"`

	// Dir is the directory for the file backend.
	Dir string `yaml:"dir"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	Redis RedisConfig `yaml:"redis"`

	// CacheIdle is how long an unused session stays in the manager cache.
	CacheIdle time.Duration `yaml:"cache_idle"`

	// SweepSchedule is the cron schedule for cache eviction.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendFile,
		Dir:           "sessions",
		SQLitePath:    "courtroom.db",
		CacheIdle:     30 * time.Minute,
		SweepSchedule: "@every 5m",
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite backend requires sqlite_path")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis backend requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Backend)
	}
	if c.CacheIdle <= 0 {
		return fmt.Errorf("cache_idle must be positive")
	}
	return nil
}

// OpenSQLite opens a GORM connection to a SQLite database file.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

// OpenBackend constructs the backend named by cfg. db is used by the sqlite
// backend; when nil, a connection to cfg.SQLitePath is opened.
func OpenBackend(cfg Config, db *gorm.DB) (StorageBackend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendFile, "":
		return NewFileBackend(cfg.Dir)
	case BackendSQLite:
		if db == nil {
			var err error
			if db, err = OpenSQLite(cfg.SQLitePath); err != nil {
				return nil, err
			}
		}
		return NewGormBackend(db)
	case BackendRedis:
		return NewRedisBackend(cfg.Redis)
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}
