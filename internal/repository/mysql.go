package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"jsonbench-api/internal/model"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using MySQL.
// Heavy sections and tags live in JSON columns.
type MySQLStore struct {
	db *sql.DB
}

// MySQLDSN builds a DSN with time parsing enabled and UTC as the session zone.
func MySQLDSN(host, port, user, password, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// NewMySQLStore creates a new MySQL store.
func NewMySQLStore(dsn string, pool PoolConfig) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	pool.apply(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStore] Initialized with pool: max=%d, idle=%d", pool.MaxOpenConns, pool.MaxIdleConns)
	return &MySQLStore{db: db}, nil
}

// createMySQLTables creates the benchmark tables. The driver rejects
// multi-statement queries by default, so each runs on its own.
func createMySQLTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		"CREATE TABLE IF NOT EXISTS light_data (" +
			"id BIGINT AUTO_INCREMENT PRIMARY KEY," +
			"`key` VARCHAR(255) NOT NULL," +
			"value TEXT NOT NULL," +
			"created_at DATETIME(6) NOT NULL," +
			"updated_at DATETIME(6) NOT NULL," +
			"INDEX idx_light_data_key (`key`)," +
			"INDEX idx_light_data_created_at (created_at))",
		"CREATE TABLE IF NOT EXISTS heavy_data (" +
			"id BIGINT AUTO_INCREMENT PRIMARY KEY," +
			"payload JSON NOT NULL," +
			"metadata JSON NOT NULL," +
			"nested_array JSON NOT NULL," +
			"tags JSON NOT NULL," +
			"created_at DATETIME(6) NOT NULL," +
			"updated_at DATETIME(6) NOT NULL," +
			"INDEX idx_heavy_data_created_at (created_at))",
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// nowMicro returns the current time at microsecond precision, which
// DATETIME(6) columns and sorted-set scores both hold exactly.
func nowMicro() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// InsertLight inserts a light record.
func (r *MySQLStore) InsertLight(ctx context.Context, data model.LightData) (*model.LightRecord, error) {
	now := nowMicro()
	query := "INSERT INTO light_data (`key`, value, created_at, updated_at) VALUES (?, ?, ?, ?)"

	result, err := r.db.ExecContext(ctx, query, data.Key, data.Value, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert light record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read light record id: %w", err)
	}
	return model.NewLightRecord(id, data, now, now), nil
}

// GetLightByKey retrieves the earliest light record with the given key.
func (r *MySQLStore) GetLightByKey(ctx context.Context, key string) (*model.LightRecord, error) {
	query := "SELECT id, `key`, value, created_at, updated_at FROM light_data WHERE `key` = ? ORDER BY id LIMIT 1"

	var rec model.LightRecord
	err := r.db.QueryRowContext(ctx, query, key).Scan(&rec.ID, &rec.Key, &rec.Value, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get light record: %w", err)
	}
	rec.CreatedAt, rec.UpdatedAt = rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()
	return &rec, nil
}

// InsertHeavy inserts a heavy document.
func (r *MySQLStore) InsertHeavy(ctx context.Context, doc model.HeavyDocument) (*model.HeavyRecord, error) {
	tags, err := json.Marshal(nonNil(doc.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	now := nowMicro()
	query := `
		INSERT INTO heavy_data (payload, metadata, nested_array, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		doc.Payload, doc.Metadata, doc.NestedArray, string(tags), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert heavy record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read heavy record id: %w", err)
	}
	return model.NewHeavyRecord(id, doc, now, now), nil
}

// GetHeavyByID retrieves a heavy record by id.
func (r *MySQLStore) GetHeavyByID(ctx context.Context, id int64) (*model.HeavyRecord, error) {
	query := `
		SELECT payload, metadata, nested_array, tags, created_at, updated_at
		FROM heavy_data WHERE id = ?`

	var doc model.HeavyDocument
	var tags []byte
	var createdAt, updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.Payload, &doc.Metadata, &doc.NestedArray, &tags, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get heavy record: %w", err)
	}
	if err := json.Unmarshal(tags, &doc.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return model.NewHeavyRecord(id, doc, createdAt.UTC(), updatedAt.UTC()), nil
}

// DeleteOlderThan deletes records created before cutoff.
func (r *MySQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"light_data", "heavy_data"} {
		result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff.UTC())
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
func (r *MySQLStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetStats returns statistics about the database.
func (r *MySQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
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

	var size sql.NullInt64
	sizeQuery := `
		SELECT SUM(data_length + index_length) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name IN ('light_data', 'heavy_data')`
	if err := r.db.QueryRowContext(ctx, sizeQuery).Scan(&size); err == nil && size.Valid {
		stats["db_size_bytes"] = size.Int64
	}

	stats["connections"] = poolStats(r.db)
	return stats, nil
}

// DB returns the underlying connection pool.
func (r *MySQLStore) DB() *sql.DB {
	return r.db
}

// Close closes the database connection pool.
func (r *MySQLStore) Close() error {
	return r.db.Close()
}

// Ensure MySQLStore implements SQLStore
var _ SQLStore = (*MySQLStore)(nil)
