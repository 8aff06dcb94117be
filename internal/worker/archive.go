package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
	"github.com/launcher-backend/internal/postgres"
	"github.com/launcher-backend/internal/redis"
)

// ArchiveWorker periodically snapshots account documents from Redis
// into PostgreSQL, and restores archived accounts missing from Redis
// on startup.
type ArchiveWorker struct {
	store    *redis.Store
	postgres *postgres.Repository
	config   *config.ArchiveConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(
	store *redis.Store,
	postgres *postgres.Repository,
	cfg *config.ArchiveConfig,
	logger *slog.Logger,
) *ArchiveWorker {
	return &ArchiveWorker{
		store:    store,
		postgres: postgres,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background archive process
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("archive worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background archive process
func (w *ArchiveWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("archive worker stopped")
	return nil
}

// run is the main worker loop
func (w *ArchiveWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.archiveAll(ctx)
		}
	}
}

// archiveAll snapshots every account from Redis into PostgreSQL
func (w *ArchiveWorker) archiveAll(ctx context.Context) {
	w.logger.Info("starting archive cycle")
	startTime := time.Now()

	accounts, err := w.store.ListAll(ctx)
	if err != nil {
		w.logger.Error("failed to list accounts for archiving", "error", err)
		return
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 500
	}

	archived := 0
	for start := 0; start < len(accounts); start += batchSize {
		end := start + batchSize
		if end > len(accounts) {
			end = len(accounts)
		}
		if err := w.postgres.BatchUpsertAccounts(ctx, accounts[start:end]); err != nil {
			w.logger.Error("failed to archive account batch", "error", err)
			return
		}
		archived += end - start
	}

	w.logger.Info("archive cycle completed",
		"duration", time.Since(startTime),
		"archived", archived,
	)
}

// RestoreFromDatabase reinstates archived accounts that are missing
// from Redis. Used at startup to recover from a lost hot store.
func (w *ArchiveWorker) RestoreFromDatabase(ctx context.Context) error {
	archived, err := w.postgres.ListAccounts(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for i := range archived {
		account := archived[i]
		_, err := w.store.FindByEmail(ctx, account.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}

		if err := w.store.Restore(ctx, &account); err != nil {
			w.logger.Error("failed to restore account", "error", err)
			continue
		}
		restored++
	}

	if restored > 0 {
		w.logger.Info("restored accounts from archive", "count", restored)
	}
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *ArchiveWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single archive cycle (useful for manual triggers)
func (w *ArchiveWorker) RunOnce(ctx context.Context) {
	w.archiveAll(ctx)
}
