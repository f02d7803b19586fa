package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"jsonbench-api/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore implements Store using Redis.
//
// Records are JSON strings under <prefix>:<kind>:<id>. Ids come from INCR
// on <prefix>:<kind>:seq and a sorted set <prefix>:<kind>:created scored by
// creation time in microseconds drives retention. Each light key has a
// sorted set of its record ids so the earliest surviving record is returned.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "jsonbench"
	}

	log.Printf("[RedisStore] Connected - DB:%d, prefix:%s", cfg.DB, keyPrefix)
	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

func (r *RedisStore) seqKey(kind string) string {
	return r.keyPrefix + ":" + kind + ":seq"
}

func (r *RedisStore) recordKey(kind string, id int64) string {
	return r.keyPrefix + ":" + kind + ":" + strconv.FormatInt(id, 10)
}

func (r *RedisStore) createdKey(kind string) string {
	return r.keyPrefix + ":" + kind + ":created"
}

func (r *RedisStore) lightIndexKey(key string) string {
	return r.keyPrefix + ":light:key:" + key
}

// InsertLight inserts a light record.
func (r *RedisStore) InsertLight(ctx context.Context, data model.LightData) (*model.LightRecord, error) {
	id, err := r.client.Incr(ctx, r.seqKey("light")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate light id: %w", err)
	}
	now := nowMicro()
	rec := model.NewLightRecord(id, data, now, now)

	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.recordKey("light", id), encoded, 0)
	pipe.ZAdd(ctx, r.lightIndexKey(data.Key), redis.Z{Score: float64(id), Member: id})
	pipe.ZAdd(ctx, r.createdKey("light"), redis.Z{Score: float64(now.UnixMicro()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert light record: %w", err)
	}
	return rec, nil
}

// GetLightByKey retrieves the earliest light record with the given key.
func (r *RedisStore) GetLightByKey(ctx context.Context, key string) (*model.LightRecord, error) {
	ids, err := r.client.ZRange(ctx, r.lightIndexKey(key), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get light index: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	id, err := strconv.ParseInt(ids[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt light index for %q: %w", key, err)
	}

	var rec model.LightRecord
	if err := r.getJSON(ctx, r.recordKey("light", id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertHeavy inserts a heavy document.
func (r *RedisStore) InsertHeavy(ctx context.Context, doc model.HeavyDocument) (*model.HeavyRecord, error) {
	id, err := r.client.Incr(ctx, r.seqKey("heavy")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate heavy id: %w", err)
	}
	now := nowMicro()
	rec := model.NewHeavyRecord(id, doc, now, now)

	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode heavy record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.recordKey("heavy", id), encoded, 0)
	pipe.ZAdd(ctx, r.createdKey("heavy"), redis.Z{Score: float64(now.UnixMicro()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert heavy record: %w", err)
	}
	return rec, nil
}

// GetHeavyByID retrieves a heavy record by id.
func (r *RedisStore) GetHeavyByID(ctx context.Context, id int64) (*model.HeavyRecord, error) {
	var rec model.HeavyRecord
	if err := r.getJSON(ctx, r.recordKey("heavy", id), &rec); err != nil {
		return nil, err
	}
	return model.NewHeavyRecord(rec.ID, rec.Document(), rec.CreatedAt, rec.UpdatedAt), nil
}

func (r *RedisStore) getJSON(ctx context.Context, key string, dst interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// DeleteOlderThan deletes records created before cutoff.
func (r *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	light, err := r.deleteLightOlderThan(ctx, cutoff)
	if err != nil {
		return light, err
	}
	heavy, err := r.deleteOlderThan(ctx, "heavy", cutoff, nil)
	return light + heavy, err
}

func (r *RedisStore) deleteLightOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteOlderThan(ctx, "light", cutoff, func(pipe redis.Pipeliner, id int64) {
		var rec model.LightRecord
		if err := r.getJSON(ctx, r.recordKey("light", id), &rec); err != nil {
			return
		}
		pipe.ZRem(ctx, r.lightIndexKey(rec.Key), id)
	})
}

// deleteOlderThan removes every record of kind scored before cutoff. extra
// queues additional per-record cleanup on the same pipeline.
func (r *RedisStore) deleteOlderThan(ctx context.Context, kind string, cutoff time.Time, extra func(redis.Pipeliner, int64)) (int64, error) {
	members, err := r.client.ZRangeByScore(ctx, r.createdKey(kind), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s records: %w", kind, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	dels := make([]*redis.IntCmd, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		if extra != nil {
			extra(pipe, id)
		}
		dels = append(dels, pipe.Del(ctx, r.recordKey(kind, id)))
		pipe.ZRem(ctx, r.createdKey(kind), member)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to delete %s records: %w", kind, err)
	}

	var deleted int64
	for _, cmd := range dels {
		deleted += cmd.Val()
	}
	return deleted, nil
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetStats returns statistics about the store.
func (r *RedisStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	light, err := r.client.ZCard(ctx, r.createdKey("light")).Result()
	if err != nil {
		return nil, err
	}
	heavy, err := r.client.ZCard(ctx, r.createdKey("heavy")).Result()
	if err != nil {
		return nil, err
	}

	pool := r.client.PoolStats()
	return map[string]interface{}{
		"light_records": light,
		"heavy_records": heavy,
		"key_prefix":    r.keyPrefix,
		"connections": map[string]interface{}{
			"total":    pool.TotalConns,
			"idle":     pool.IdleConns,
			"hits":     pool.Hits,
			"misses":   pool.Misses,
			"timeouts": pool.Timeouts,
		},
	}, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
