package repository

import (
	"context"
	"sync"
	"time"

	"jsonbench-api/internal/model"
)

// MemoryStore implements Store in process memory. Records are lost on
// restart; it backs tests and database-free benchmark runs.
type MemoryStore struct {
	mu        sync.RWMutex
	light     map[int64]*model.LightRecord
	lightKeys map[string][]int64
	heavy     map[int64]*model.HeavyRecord
	lightSeq  int64
	heavySeq  int64
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		light:     make(map[int64]*model.LightRecord),
		lightKeys: make(map[string][]int64),
		heavy:     make(map[int64]*model.HeavyRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InsertLight inserts a light record.
func (s *MemoryStore) InsertLight(ctx context.Context, data model.LightData) (*model.LightRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lightSeq++
	now := s.now()
	rec := model.NewLightRecord(s.lightSeq, data, now, now)
	s.light[rec.ID] = rec
	s.lightKeys[data.Key] = append(s.lightKeys[data.Key], rec.ID)

	out := *rec
	return &out, nil
}

// GetLightByKey retrieves the earliest light record with the given key.
func (s *MemoryStore) GetLightByKey(ctx context.Context, key string) (*model.LightRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.lightKeys[key]
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	out := *s.light[ids[0]]
	return &out, nil
}

// InsertHeavy inserts a heavy document.
func (s *MemoryStore) InsertHeavy(ctx context.Context, doc model.HeavyDocument) (*model.HeavyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heavySeq++
	now := s.now()
	rec := model.NewHeavyRecord(s.heavySeq, doc, now, now)
	s.heavy[rec.ID] = rec
	return model.NewHeavyRecord(rec.ID, rec.Document(), now, now), nil
}

// GetHeavyByID retrieves a heavy record by id.
func (s *MemoryStore) GetHeavyByID(ctx context.Context, id int64) (*model.HeavyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.heavy[id]
	if !ok {
		return nil, ErrNotFound
	}
	return model.NewHeavyRecord(rec.ID, rec.Document(), rec.CreatedAt, rec.UpdatedAt), nil
}

// DeleteOlderThan deletes records created before cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.light {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.light, id)
			s.dropLightKey(rec.Key, id)
			deleted++
		}
	}
	for id, rec := range s.heavy {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.heavy, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) dropLightKey(key string, id int64) {
	ids := s.lightKeys[key]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.lightKeys, key)
		return
	}
	s.lightKeys[key] = ids
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// GetStats returns record counts.
func (s *MemoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"light_records": int64(len(s.light)),
		"heavy_records": int64(len(s.heavy)),
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
