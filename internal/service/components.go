// File: internal/service/components.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/browser"
	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/observability"
	"github.com/probeworks/shopflow-cli/internal/results"
)

// checksBuffer sizes the channel between scenario execution and the
// check processor. A full buffer blocks the producing scenario rather
// than dropping events.
const checksBuffer = 1024

// Components holds all the initialized services a probing run requires.
// This struct centralizes the lifecycle management of run-related
// dependencies so commands only initialize and shut down.
type Components struct {
	Browser *browser.Manager
	Store   *results.Store
	DBPool  *pgxpool.Pool

	// Limiter caps page navigations across every concurrent session.
	Limiter *rate.Limiter

	// checksChan decouples check recording from persistence.
	checksChan chan schemas.CheckResult
	processor  *results.Processor
}

// Initialize builds the components shared by the run and watch commands.
// Persistence is optional: with no database URL configured the pool,
// store and processor stay nil and results only reach the report.
func Initialize(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{
		Limiter: rate.NewLimiter(rate.Limit(cfg.Target.NavRate), 1),
	}

	// Ensure cleanup happens if initialization fails midway.
	var initErr error
	defer func() {
		if initErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initErr))
			c.Shutdown()
		}
	}()

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			initErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initErr
		}
		// Assign immediately so the deferred Shutdown can close it if a
		// later step fails.
		c.DBPool = pool

		store, err := results.New(ctx, pool, logger)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize results store: %w", err)
			return nil, initErr
		}
		c.Store = store
		logger.Debug("Results store initialized.")

		c.checksChan = make(chan schemas.CheckResult, checksBuffer)
		c.processor = results.NewProcessor(c.checksChan, pool, logger, cfg.Database)
		c.processor.Start(ctx)
		logger.Debug("Check processor started.")
	} else {
		logger.Info("No database configured; run results will only reach the report.")
	}

	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize browser manager: %w", err)
		return nil, initErr
	}
	c.Browser = manager
	logger.Debug("Browser manager initialized.")

	logger.Info("All components initialized successfully.")
	return c, nil
}

// CheckSink returns the channel scenario checks stream into, or nil when
// persistence is disabled.
func (c *Components) CheckSink() chan<- schemas.CheckResult {
	if c.checksChan == nil {
		return nil
	}
	return c.checksChan
}

// Shutdown gracefully closes all components, ensuring resources are
// released in the correct order. The checks channel closes before the
// processor stops so the final batch drains, and the pool closes last
// because the processor persists through it.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Close the checks channel. Scenarios have finished by now; this
	// signals the processor to drain and flush.
	if c.checksChan != nil {
		close(c.checksChan)
		logger.Debug("Checks channel closed.")
	}

	// 2. Join the processor so every in-flight batch reaches the database.
	if c.processor != nil {
		c.processor.Stop()
		logger.Debug("Check processor stopped.")
	}

	// 3. Shut down the browser manager.
	if c.Browser != nil {
		// Use a separate context with a timeout for shutdown to ensure it
		// completes even if the main application context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.Browser.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	// 4. Close the database connection pool.
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down.")
}
