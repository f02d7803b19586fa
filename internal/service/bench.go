package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jsonbench-api/internal/metrics"
	"jsonbench-api/internal/model"
	"jsonbench-api/internal/repository"
)

// StorageError reports a failed storage operation. It never wraps
// repository.ErrNotFound, which is returned as is.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// BenchOptions configures a BenchService.
type BenchOptions struct {
	// Ingester selects typed or untyped heavy ingestion.
	Ingester model.Ingester

	// Timeout bounds each storage call. Zero leaves only the request context.
	Timeout time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// BenchService implements the benchmark operations on top of a store.
type BenchService struct {
	store    repository.Store
	ingester model.Ingester
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewBenchService creates a new bench service.
// Returns nil if store is nil (required dependency).
func NewBenchService(store repository.Store, opts BenchOptions) *BenchService {
	if store == nil {
		return nil
	}
	return &BenchService{
		store:    store,
		ingester: opts.Ingester,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
	}
}

// Mode returns the active ingest mode.
func (s *BenchService) Mode() model.IngestMode {
	if s.ingester.Mode == "" {
		return model.IngestTyped
	}
	return s.ingester.Mode
}

// ParseLight validates a light document without storing it.
func (s *BenchService) ParseLight(body []byte) error {
	_, err := s.parseLight("parse_light", body)
	return err
}

// ParseHeavy validates a heavy document without storing it. In typed mode
// the payload is also projected, so a projection defect panics here.
func (s *BenchService) ParseHeavy(body []byte) error {
	_, err := s.ingest("parse_heavy", body)
	return err
}

// WriteLight validates and stores a light document.
func (s *BenchService) WriteLight(ctx context.Context, body []byte) (*model.LightRecord, error) {
	data, err := s.parseLight("write_light_db", body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	start := time.Now()
	rec, err := s.store.InsertLight(ctx, *data)
	s.observe("insert_light", start, err)
	if err != nil {
		return nil, &StorageError{Op: "insert light record", Err: err}
	}
	return rec, nil
}

// ReadLight returns the light record stored under key.
func (s *BenchService) ReadLight(ctx context.Context, key string) (*model.LightRecord, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	start := time.Now()
	rec, err := s.store.GetLightByKey(ctx, key)
	s.observe("get_light", start, err)
	if err != nil {
		return nil, storageError("get light record", err)
	}
	return rec, nil
}

// WriteHeavy validates a heavy document through the active ingest mode and
// stores it.
func (s *BenchService) WriteHeavy(ctx context.Context, body []byte) (*model.HeavyRecord, error) {
	doc, err := s.ingest("write_heavy_db", body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	start := time.Now()
	rec, err := s.store.InsertHeavy(ctx, doc)
	s.observe("insert_heavy", start, err)
	if err != nil {
		return nil, &StorageError{Op: "insert heavy record", Err: err}
	}
	return rec, nil
}

// ReadHeavy returns the heavy record with the given id.
func (s *BenchService) ReadHeavy(ctx context.Context, id int64) (*model.HeavyRecord, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	start := time.Now()
	rec, err := s.store.GetHeavyByID(ctx, id)
	s.observe("get_heavy", start, err)
	if err != nil {
		return nil, storageError("get heavy record", err)
	}
	return rec, nil
}

// Ping checks that the store is reachable.
func (s *BenchService) Ping(ctx context.Context) error {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

// Stats returns store statistics.
func (s *BenchService) Stats(ctx context.Context) (map[string]interface{}, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	return s.store.GetStats(ctx)
}

func (s *BenchService) parseLight(endpoint string, body []byte) (*model.LightData, error) {
	data, err := model.ParseLightData(body, s.ingester.Options)
	if err != nil {
		s.metrics.ValidationFailed(endpoint)
		return nil, err
	}
	return data, nil
}

func (s *BenchService) ingest(endpoint string, body []byte) (model.HeavyDocument, error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*model.ProjectionError); ok {
				s.metrics.ProjectionDefect()
			}
			panic(r)
		}
	}()

	doc, err := s.ingester.Ingest(body)
	if err != nil {
		s.metrics.ValidationFailed(endpoint)
		return model.HeavyDocument{}, err
	}
	return doc, nil
}

func (s *BenchService) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *BenchService) observe(operation string, start time.Time, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveStorage(operation, start, err)
}

func storageError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return repository.ErrNotFound
	}
	return &StorageError{Op: op, Err: err}
}
