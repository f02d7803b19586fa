package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jsonbench-api/internal/model"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("record not found")

// LightRepository defines light record data access methods.
type LightRepository interface {
	// InsertLight stores a light record and returns it with its generated fields.
	InsertLight(ctx context.Context, data model.LightData) (*model.LightRecord, error)

	// GetLightByKey returns one record with the given key, or ErrNotFound.
	GetLightByKey(ctx context.Context, key string) (*model.LightRecord, error)
}

// HeavyRepository defines heavy record data access methods.
type HeavyRepository interface {
	// InsertHeavy stores a heavy document and returns it with its generated fields.
	InsertHeavy(ctx context.Context, doc model.HeavyDocument) (*model.HeavyRecord, error)

	// GetHeavyByID returns the record with the given id, or ErrNotFound.
	GetHeavyByID(ctx context.Context, id int64) (*model.HeavyRecord, error)
}

// Store is a storage backend holding both record kinds.
type Store interface {
	LightRepository
	HeavyRepository

	// DeleteOlderThan removes records created before cutoff and returns how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// GetStats returns statistics about the backend.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the backend connection.
	Close() error
}

// SQLStore is implemented by stores backed by a database/sql pool.
type SQLStore interface {
	Store
	DB() *sql.DB
}

// PoolConfig holds database/sql connection pool settings.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool settings used for network databases.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

func (p PoolConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)
	db.SetConnMaxIdleTime(p.ConnMaxIdleTime)
}

// poolStats reports database/sql pool usage.
func poolStats(db *sql.DB) map[string]interface{} {
	s := db.Stats()
	return map[string]interface{}{
		"open":          s.OpenConnections,
		"in_use":        s.InUse,
		"idle":          s.Idle,
		"max_open":      s.MaxOpenConnections,
		"wait_count":    s.WaitCount,
		"wait_duration": s.WaitDuration.String(),
	}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
