// Package app wires configuration, storage and domain services together for
// the binaries under cmd/.
package app

import (
	"context"
	"fmt"

	"supplyledger/internal/domain/documents/purchase_order"
	"supplyledger/internal/domain/documents/requisition"
	"supplyledger/internal/domain/reconciliation"
	"supplyledger/internal/domain/registers/stock"
	"supplyledger/internal/infrastructure/config"
	"supplyledger/internal/infrastructure/locking"
	"supplyledger/internal/infrastructure/storage/postgres"
	"supplyledger/internal/infrastructure/storage/postgres/document_repo"
	"supplyledger/internal/infrastructure/storage/postgres/register_repo"
	"supplyledger/pkg/logger"
)

// Container holds the long-lived components of a process.
type Container struct {
	Config *config.Config

	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Audit     *postgres.AuditService
	Publisher *postgres.OutboxPublisher

	Requisitions *requisition.Service
	Orders       *purchase_order.Service
	Costs        *stock.Service
	Dispatcher   *reconciliation.Dispatcher
}

// New connects to the database and builds every service.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txManager := postgres.NewTxManager(pool)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit service: %w", err)
	}

	var locker stock.Locker
	switch cfg.Locking.Backend {
	case config.LockingMemory:
		locker = locking.NewMemory()
	default:
		locker = postgres.NewAdvisoryLocker(txManager, cfg.Locking.Wait)
	}

	cmp := cfg.Comparator()

	requisitions := requisition.NewService(
		document_repo.NewRequisitionRepo(txManager), txManager, auditService, cmp)

	orders := purchase_order.NewService(
		document_repo.NewPurchaseOrderRepo(txManager), txManager, auditService,
		purchase_order.Config{Comparator: cmp, Policy: cfg.Reconcile.OrderStatusPolicy})

	costs := stock.NewService(
		register_repo.NewStockLotRepo(txManager), txManager, locker, auditService,
		stock.Config{
			Workers:      cfg.Costing.BatchWorkers,
			BatchTimeout: cfg.Costing.BatchTimeout,
			LockWait:     cfg.Locking.Wait,
		})

	logger.Info(ctx, "services initialized",
		"locking_backend", cfg.Locking.Backend,
		"epsilon", cmp.Epsilon(),
		"order_status_policy", cfg.Reconcile.OrderStatusPolicy)

	return &Container{
		Config:       cfg,
		Pool:         pool,
		TxManager:    txManager,
		Audit:        auditService,
		Publisher:    postgres.NewOutboxPublisher(txManager),
		Requisitions: requisitions,
		Orders:       orders,
		Costs:        costs,
		Dispatcher:   reconciliation.NewDispatcher(requisitions, orders, costs),
	}, nil
}

// Close releases the database pool.
func (c *Container) Close() {
	c.Pool.Close()
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
}
