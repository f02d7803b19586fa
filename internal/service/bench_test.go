package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	prom_testutil "github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"

	"jsonbench-api/internal/metrics"
	"jsonbench-api/internal/model"
	"jsonbench-api/internal/repository"
)

const heavyBody = `{
	"payload": {
		"user": {"id": 1, "name": "a", "prefs": {"lang": "en", "tz": "UTC", "flags": [true]}},
		"items": [{"sku": "X1", "qty": 2, "price": 9.99}]
	},
	"metadata": {"trace": "t1", "ts": 1000, "headers": {"ua": "curl", "accept": ["*/*"]}},
	"nested_array": [{"level": 1, "data": {"foo": [1, 2], "bar": {"k1": "a", "k2": "b"}}}],
	"tags": ["a", "b"]
}`

// failingStore fails every operation with err.
type failingStore struct {
	*repository.MemoryStore
	err error
}

func (f failingStore) InsertLight(context.Context, model.LightData) (*model.LightRecord, error) {
	return nil, f.err
}

func (f failingStore) GetLightByKey(context.Context, string) (*model.LightRecord, error) {
	return nil, f.err
}

func (f failingStore) InsertHeavy(context.Context, model.HeavyDocument) (*model.HeavyRecord, error) {
	return nil, f.err
}

func (f failingStore) GetHeavyByID(context.Context, int64) (*model.HeavyRecord, error) {
	return nil, f.err
}

// blockingStore waits for the context to end on every heavy insert.
type blockingStore struct {
	*repository.MemoryStore
}

func (blockingStore) InsertHeavy(ctx context.Context, _ model.HeavyDocument) (*model.HeavyRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newService(t *testing.T, store repository.Store, opts BenchOptions) *BenchService {
	t.Helper()
	svc := NewBenchService(store, opts)
	assert.Assert(t, svc != nil)
	return svc
}

func TestNewBenchServiceRequiresStore(t *testing.T) {
	assert.Assert(t, NewBenchService(nil, BenchOptions{}) == nil)
}

func TestWriteThenReadHeavy(t *testing.T) {
	for _, mode := range []model.IngestMode{model.IngestTyped, model.IngestUntyped} {
		t.Run(string(mode), func(t *testing.T) {
			svc := newService(t, repository.NewMemoryStore(), BenchOptions{Ingester: model.Ingester{Mode: mode}})
			assert.Equal(t, svc.Mode(), mode)
			ctx := context.Background()

			written, err := svc.WriteHeavy(ctx, []byte(heavyBody))
			assert.NilError(t, err)
			assert.Equal(t, written.ID, int64(1))
			assert.Assert(t, written.CreatedAt.Equal(written.UpdatedAt))

			read, err := svc.ReadHeavy(ctx, written.ID)
			assert.NilError(t, err)
			assert.Assert(t, read.Payload.Equal(written.Payload))
			assert.Assert(t, read.Metadata.Equal(written.Metadata))
			assert.Assert(t, read.NestedArray.Equal(written.NestedArray))
			assert.DeepEqual(t, read.Tags, []string{"a", "b"})
			assert.Equal(t, read.NestedArray.String(), `[{"level":1,"data":{"foo":[1,2],"bar":{"k1":"a","k2":"b"}}}]`)
		})
	}
}

func TestWriteThenReadLight(t *testing.T) {
	svc := newService(t, repository.NewMemoryStore(), BenchOptions{})
	ctx := context.Background()

	written, err := svc.WriteLight(ctx, []byte(`{"key":"key_1","value":"v"}`))
	assert.NilError(t, err)

	read, err := svc.ReadLight(ctx, "key_1")
	assert.NilError(t, err)
	assert.DeepEqual(t, read, written)
}

func TestInvalidBodySkipsStorage(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	store := repository.NewMemoryStore()
	svc := newService(t, store, BenchOptions{Metrics: metrics.New(reg)})
	ctx := context.Background()

	_, err := svc.WriteHeavy(ctx, []byte(`{"payload":{}}`))
	var verr *model.ValidationError
	assert.Assert(t, errors.As(err, &verr), "got %v", err)

	_, err = svc.WriteLight(ctx, []byte(`{"key":1}`))
	assert.Assert(t, errors.As(err, &verr), "got %v", err)

	assert.ErrorContains(t, svc.ParseHeavy([]byte(`[]`)), "expected object")
	assert.NilError(t, svc.ParseHeavy([]byte(heavyBody)))
	assert.NilError(t, svc.ParseLight([]byte(`{"key":"k","value":"v"}`)))

	stats, err := store.GetStats(ctx)
	assert.NilError(t, err)
	assert.Equal(t, stats["heavy_records"], int64(0))
	assert.Equal(t, stats["light_records"], int64(0))

	count, err := prom_testutil.GatherAndCount(reg, "jsonbench_validation_failures_total")
	assert.NilError(t, err)
	assert.Equal(t, count, 3)
}

func TestStrictOptionReachesParser(t *testing.T) {
	body := []byte(`{"key":"k","value":"v","extra":true}`)

	lenient := newService(t, repository.NewMemoryStore(), BenchOptions{})
	assert.NilError(t, lenient.ParseLight(body))

	strict := newService(t, repository.NewMemoryStore(), BenchOptions{
		Ingester: model.Ingester{Options: model.ParseOptions{Strict: true}},
	})
	assert.ErrorContains(t, strict.ParseLight(body), "extra: unknown field")
}

func TestNotFoundIsNotAStorageError(t *testing.T) {
	svc := newService(t, repository.NewMemoryStore(), BenchOptions{})
	ctx := context.Background()

	_, err := svc.ReadHeavy(ctx, 99)
	assert.Assert(t, errors.Is(err, repository.ErrNotFound))
	var serr *StorageError
	assert.Assert(t, !errors.As(err, &serr))

	_, err = svc.ReadLight(ctx, "missing")
	assert.Assert(t, errors.Is(err, repository.ErrNotFound))
}

func TestStorageFailures(t *testing.T) {
	boom := errors.New("connection refused")
	reg := prometheus.NewPedanticRegistry()
	svc := newService(t, failingStore{MemoryStore: repository.NewMemoryStore(), err: boom},
		BenchOptions{Metrics: metrics.New(reg)})
	ctx := context.Background()

	calls := map[string]func() error{
		"write light": func() error { _, err := svc.WriteLight(ctx, []byte(`{"key":"k","value":"v"}`)); return err },
		"read light":  func() error { _, err := svc.ReadLight(ctx, "k"); return err },
		"write heavy": func() error { _, err := svc.WriteHeavy(ctx, []byte(heavyBody)); return err },
		"read heavy":  func() error { _, err := svc.ReadHeavy(ctx, 1); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var serr *StorageError
			assert.Assert(t, errors.As(err, &serr), "got %v", err)
			assert.Assert(t, errors.Is(err, boom))
			assert.ErrorContains(t, err, "connection refused")
		})
	}

	count, err := prom_testutil.GatherAndCount(reg, "jsonbench_storage_errors_total")
	assert.NilError(t, err)
	assert.Equal(t, count, 4)
}

func TestStorageTimeout(t *testing.T) {
	svc := newService(t, blockingStore{repository.NewMemoryStore()}, BenchOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := svc.WriteHeavy(context.Background(), []byte(heavyBody))
	assert.Assert(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Assert(t, time.Since(start) < 5*time.Second)
}
