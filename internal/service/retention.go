package service

import (
	"context"
	"log"
	"sync"
	"time"

	"jsonbench-api/internal/metrics"
	"jsonbench-api/internal/repository"
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	// Period is how long records are kept. Records created earlier than
	// now minus Period are deleted.
	Period time.Duration

	// Interval is how often the cleanup runs.
	// Default: 10 minutes
	Interval time.Duration

	// InitialDelay postpones the first run after Start.
	// Default: 1 minute
	InitialDelay time.Duration
}

// RetentionScheduler periodically deletes records older than the retention period.
type RetentionScheduler struct {
	store     repository.Store
	config    RetentionConfig
	metrics   *metrics.Metrics
	now       func() time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewRetentionScheduler creates a new retention scheduler.
func NewRetentionScheduler(store repository.Store, config RetentionConfig, m *metrics.Metrics) *RetentionScheduler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}

	return &RetentionScheduler{
		store:   store,
		config:  config,
		metrics: m,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the retention scheduler.
func (s *RetentionScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[RetentionScheduler] Started - Interval: %v, Period: %v",
		s.config.Interval, s.config.Period)

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.runCleanup()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

// run is the main cleanup loop.
func (s *RetentionScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runCleanup()
		case <-s.stopCh:
			log.Printf("[RetentionScheduler] Stopped")
			return
		}
	}
}

// runCleanup performs one cleanup pass and logs the outcome.
func (s *RetentionScheduler) runCleanup() {
	deleted, err := s.RunNow()
	if err != nil {
		log.Printf("[RetentionScheduler] Error during cleanup: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[RetentionScheduler] Deleted %d records older than %v", deleted, s.config.Period)
	}
}

// Stop stops the retention scheduler.
func (s *RetentionScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate cleanup run.
func (s *RetentionScheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.store.DeleteOlderThan(ctx, s.now().Add(-s.config.Period))
	s.metrics.RetentionRun(deleted, err)
	return deleted, err
}
