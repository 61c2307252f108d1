// Package main is the entry point for the supplyledger background worker.
// It relays reconciliation events from the outbox and optionally runs the
// periodic stock cost batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"supplyledger/internal/app"
	appctx "supplyledger/internal/core/context"
	"supplyledger/internal/domain/registers/stock"
	"supplyledger/internal/infrastructure/config"
	"supplyledger/internal/infrastructure/events"
	"supplyledger/internal/infrastructure/storage/postgres"
	"supplyledger/pkg/logger"
)

const publishedRetention = 7 * 24 * time.Hour

func main() {
	replayOnce := flag.Bool("replay-once", false, "run one stock cost batch and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	container, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer container.Close()

	worker := NewWorker(container, log)

	if *replayOnce {
		if err := worker.runBatch(ctx); err != nil {
			log.Fatalw("stock cost batch failed", "error", err)
		}
		return
	}

	log.Info("starting supplyledger worker")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drives the outbox relay and the periodic cost batch.
type Worker struct {
	pool  *postgres.Pool
	relay *postgres.OutboxRelay
	costs *stock.Service
	cfg   config.WorkerConfig
	batch time.Duration
	log   *logger.Logger
}

func NewWorker(c *app.Container, log *logger.Logger) *Worker {
	relay := postgres.NewOutboxRelay(c.Pool, events.NewHandler(c.Dispatcher), postgres.RelayConfig{
		BatchSize:  c.Config.Worker.OutboxBatchSize,
		MaxRetries: c.Config.Worker.OutboxMaxRetries,
	})
	return &Worker{
		pool:  c.Pool,
		relay: relay,
		costs: c.Costs,
		cfg:   c.Config.Worker,
		batch: c.Config.Costing.BatchInterval,
		log:   log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.OutboxPollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	var batchC <-chan time.Time
	if w.batch > 0 {
		batchTicker := time.NewTicker(w.batch)
		defer batchTicker.Stop()
		batchC = batchTicker.C
		w.log.Infow("periodic stock cost batch enabled", "interval", w.batch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanupOutbox(ctx)
			w.pool.LogStats(ctx)
		case <-batchC:
			if err := w.runBatch(ctx); err != nil {
				w.log.Errorw("stock cost batch failed", "error", err)
			}
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())

	count, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox batch failed", "error", err)
		return
	}
	if count > 0 {
		w.log.Debugw("processed outbox batch", "count", count)
	}
}

func (w *Worker) cleanupOutbox(ctx context.Context) {
	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("failed to move exhausted messages", "error", err)
	} else if moved > 0 {
		w.log.Warnw("moved outbox messages to dead letter queue", "count", moved)
	}

	purged, err := w.relay.PurgePublished(ctx, publishedRetention)
	if err != nil {
		w.log.Errorw("failed to purge published messages", "error", err)
		return
	}
	if purged > 0 {
		w.log.Infow("purged published outbox messages", "count", purged)
	}
}

func (w *Worker) runBatch(ctx context.Context) error {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())

	res, err := w.costs.RecalculateBatch(ctx, stock.ScopeFilter{})
	if err != nil {
		return err
	}
	if res.ScopesFailed > 0 {
		w.log.Warnw("stock cost batch finished with failures",
			"scopes_failed", res.ScopesFailed,
			"scopes_processed", res.ScopesProcessed)
	}
	return nil
}
