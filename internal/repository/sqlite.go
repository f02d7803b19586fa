package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"jsonbench-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Heavy sections and tags are stored as JSON text; timestamps as Unix
// nanoseconds so range deletes compare numerically.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite store.
// dbPath is the path to the SQLite database file (e.g., "./data/bench.db")
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	if err := createSQLiteTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// createSQLiteTables creates the benchmark tables.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS light_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_light_data_key ON light_data(key);
	CREATE INDEX IF NOT EXISTS idx_light_data_created_at ON light_data(created_at);

	CREATE TABLE IF NOT EXISTS heavy_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		metadata TEXT NOT NULL,
		nested_array TEXT NOT NULL,
		tags TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_heavy_data_created_at ON heavy_data(created_at);
	`
	_, err := db.Exec(query)
	return err
}

// InsertLight inserts a light record.
func (r *SQLiteStore) InsertLight(ctx context.Context, data model.LightData) (*model.LightRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	query := `INSERT INTO light_data (key, value, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, data.Key, data.Value, now.UnixNano(), now.UnixNano()).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert light record: %w", err)
	}
	return model.NewLightRecord(id, data, now, now), nil
}

// GetLightByKey retrieves the earliest light record with the given key.
func (r *SQLiteStore) GetLightByKey(ctx context.Context, key string) (*model.LightRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT id, key, value, created_at, updated_at FROM light_data WHERE key = ? ORDER BY id LIMIT 1`

	var rec model.LightRecord
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, query, key).Scan(&rec.ID, &rec.Key, &rec.Value, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get light record: %w", err)
	}
	rec.CreatedAt = fromUnixNano(createdAt)
	rec.UpdatedAt = fromUnixNano(updatedAt)
	return &rec, nil
}

// InsertHeavy inserts a heavy document.
func (r *SQLiteStore) InsertHeavy(ctx context.Context, doc model.HeavyDocument) (*model.HeavyRecord, error) {
	tags, err := json.Marshal(nonNil(doc.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	query := `
		INSERT INTO heavy_data (payload, metadata, nested_array, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		doc.Payload, doc.Metadata, doc.NestedArray, string(tags), now.UnixNano(), now.UnixNano(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert heavy record: %w", err)
	}
	return model.NewHeavyRecord(id, doc, now, now), nil
}

// GetHeavyByID retrieves a heavy record by id.
func (r *SQLiteStore) GetHeavyByID(ctx context.Context, id int64) (*model.HeavyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT payload, metadata, nested_array, tags, created_at, updated_at
		FROM heavy_data WHERE id = ?`

	var doc model.HeavyDocument
	var tags string
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.Payload, &doc.Metadata, &doc.NestedArray, &tags, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get heavy record: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return model.NewHeavyRecord(id, doc, fromUnixNano(createdAt), fromUnixNano(updatedAt)), nil
}

// DeleteOlderThan deletes records created before cutoff.
func (r *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, table := range []string{"light_data", "heavy_data"} {
		result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff.UnixNano())
		if err != nil {
			return total, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += deleted
	}
	return total, nil
}

// Ping checks the database connection.
func (r *SQLiteStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetStats returns statistics about the database.
func (r *SQLiteStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]interface{})

	var light, heavy int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM light_data").Scan(&light); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM heavy_data").Scan(&heavy); err != nil {
		return nil, err
	}
	stats["light_records"] = light
	stats["heavy_records"] = heavy

	// Database file size
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	stats["connections"] = poolStats(r.db)
	return stats, nil
}

// DB returns the underlying connection pool.
func (r *SQLiteStore) DB() *sql.DB {
	return r.db
}

// Close closes the database connection.
func (r *SQLiteStore) Close() error {
	return r.db.Close()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// Ensure SQLiteStore implements SQLStore
var _ SQLStore = (*SQLiteStore)(nil)
