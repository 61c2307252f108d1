// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"supplyledger/internal/domain/reconciliation"
	"supplyledger/internal/infrastructure/events"
	"supplyledger/internal/infrastructure/http/v1/handlers"
	"supplyledger/internal/infrastructure/http/v1/middleware"
	"supplyledger/pkg/logger"
)

// RouterConfig holds the services the API exposes.
type RouterConfig struct {
	Logger *logger.Logger

	// Database backs the readiness check
	Database handlers.Database

	Requisitions reconciliation.RequisitionRecomputer
	Orders       reconciliation.OrderRecomputer
	Costs        handlers.CostService
	Dispatcher   events.Dispatcher

	// Publisher enables ?async=true on event hooks. Optional.
	Publisher handlers.EventPublisher

	// Audit serves the recompute trail. Optional.
	Audit handlers.AuditHistory
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Database)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")

	inventory := handlers.NewInventoryHandler(base, cfg.Costs)
	{
		g := v1.Group("/inventory")
		g.POST("/recalculate-average", inventory.RecalculateAverage)
		g.POST("/recalculate-averages", inventory.RecalculateAverages)
	}

	procurement := handlers.NewProcurementHandler(base, cfg.Requisitions, cfg.Orders)
	v1.POST("/requisitions/:id/recompute-status", procurement.RecomputeRequisition)
	v1.POST("/purchase-orders/:id/recompute-status", procurement.RecomputeOrder)

	hooks := handlers.NewEventsHandler(base, cfg.Dispatcher, cfg.Publisher)
	{
		g := v1.Group("/events")
		g.POST("/order-changed", hooks.OrderChanged)
		g.POST("/invoice-changed", hooks.InvoiceChanged)
	}

	if cfg.Audit != nil {
		auditHandler := handlers.NewAuditHandler(base, cfg.Audit)
		v1.GET("/audit/:entity_type/:entity_id", auditHandler.History)
	}

	return router
}
