// File: internal/results/processor.go
package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/config"
)

// Processor manages the ingestion, batching, and persistence of live
// check events. Scenarios stream checks as they happen; the processor
// buffers them and writes batches to check_events so a long run is
// observable before its envelope lands.
type Processor struct {
	inputChan <-chan schemas.CheckResult
	// CopyFrom goes straight to the pool. The envelope transaction in
	// Store is too heavy for a stream that flushes every few seconds.
	dbPool DBPool
	logger *zap.Logger
	cfg    config.DatabaseConfig

	buffer []schemas.CheckResult
	mu     sync.Mutex
	wg     sync.WaitGroup

	// Signals for synchronization
	flushSignal chan struct{}
	stopSignal  chan struct{}
}

// NewProcessor initializes a new check event processor.
func NewProcessor(inputChan <-chan schemas.CheckResult, dbPool DBPool, logger *zap.Logger, dbCfg config.DatabaseConfig) *Processor {
	// Ensure sane defaults when the config carries zero values.
	if dbCfg.BatchSize <= 0 {
		dbCfg.BatchSize = 50
	}
	if dbCfg.FlushInterval <= 0 {
		dbCfg.FlushInterval = 2 * time.Second
	}

	return &Processor{
		inputChan:   inputChan,
		dbPool:      dbPool,
		logger:      logger.Named("check_processor"),
		cfg:         dbCfg,
		buffer:      make([]schemas.CheckResult, 0, dbCfg.BatchSize),
		flushSignal: make(chan struct{}, 1), // Buffered so a signal send never blocks
		stopSignal:  make(chan struct{}),
	}
}

// Start launches the processing loop. Stop joins it, so the loop is
// registered with the wait group before Start returns.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// run is the main processing loop.
func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	p.logger.Info("Check processor started.",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("flush_interval", p.cfg.FlushInterval))

	for {
		select {
		case check, ok := <-p.inputChan:
			if !ok {
				// Producers closed the channel; flush whatever is buffered.
				p.logger.Info("Input channel closed. Finalizing processing.")
				p.flush()
				return
			}
			p.processCheck(check)

		case <-ticker.C:
			// Time-based flush
			p.flush()

		case <-p.flushSignal:
			// Explicit flush requested (batch size reached)
			p.flush()

		case <-ctx.Done():
			// Context cancelled (immediate termination).
			p.logger.Warn("Context cancelled. Stopping processor immediately and attempting final flush.")
			p.drainChannel()
			p.flush()
			return

		case <-p.stopSignal:
			// Explicit stop requested (graceful shutdown).
			p.logger.Info("Stop signal received. Draining channel and flushing remaining buffer.")
			p.drainChannel()
			p.flush()
			return
		}
	}
}

// drainChannel reads any remaining checks from the input channel until it's empty.
func (p *Processor) drainChannel() {
	p.logger.Debug("Draining input channel.")
	count := 0
	for {
		select {
		case check, ok := <-p.inputChan:
			if !ok {
				return // Channel closed and drained
			}
			p.processCheck(check)
			count++
		default:
			// Channel is empty
			p.logger.Debug("Channel drained.", zap.Int("count", count))
			return
		}
	}
}

// processCheck adds a check to the buffer and triggers a flush if the batch size is reached.
func (p *Processor) processCheck(check schemas.CheckResult) {
	if check.ObservedAt.IsZero() {
		check.ObservedAt = time.Now().UTC()
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, check)
	bufferLen := len(p.buffer)
	p.mu.Unlock()

	if bufferLen >= p.cfg.BatchSize {
		select {
		case p.flushSignal <- struct{}{}:
		default:
			// Signal already pending, skip sending another one.
		}
	}
}

// flush persists the current buffer to the database.
func (p *Processor) flush() {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	toPersist := make([]schemas.CheckResult, len(p.buffer))
	copy(toPersist, p.buffer)
	p.buffer = p.buffer[:0]
	p.mu.Unlock()

	p.logger.Debug("Flushing check events.", zap.Int("count", len(toPersist)))

	// Persist off the loop goroutine so a slow database never stalls ingestion.
	p.wg.Add(1)
	go func(batch []schemas.CheckResult) {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := p.persistBatch(ctx, batch); err != nil {
			p.logger.Error("Failed to persist check batch.", zap.Error(err), zap.Int("batch_size", len(batch)))
		}
	}(toPersist)
}

// persistBatch handles the actual database insertion using pgx.CopyFrom.
func (p *Processor) persistBatch(ctx context.Context, batch []schemas.CheckResult) error {
	if p.dbPool == nil {
		// Running without a database; the envelope report still carries everything.
		p.logger.Warn("Database pool not initialized. Check events will not be persisted.")
		return nil
	}

	rows := make([][]interface{}, 0, len(batch))
	for _, c := range batch {
		// Events must carry a scenario ID for correlation with the archived run.
		if c.ScenarioID == "" {
			p.logger.Warn("Check event missing scenario ID, skipping persistence.", zap.String("name", c.Name))
			continue
		}

		rows = append(rows, []interface{}{
			uuid.NewString(), c.ScenarioID,
			c.Name, string(c.Kind), string(c.Status),
			c.Expected, c.Actual, c.Detail,
			c.ObservedAt.UTC(),
		})
	}

	if len(rows) == 0 {
		if len(batch) > 0 {
			p.logger.Debug("No valid check events in batch to persist (all skipped).")
		}
		return nil
	}

	copyCount, err := p.dbPool.CopyFrom(
		ctx,
		pgx.Identifier{"check_events"},
		[]string{"id", "scenario_id", "name", "kind", "status", "expected", "actual", "detail", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy check events: %w", err)
	}
	if int(copyCount) != len(rows) {
		p.logger.Warn("Mismatch in persisted check count.", zap.Int("expected", len(rows)), zap.Int64("actual", copyCount))
		return fmt.Errorf("mismatch in copied check count: expected %d, got %d", len(rows), copyCount)
	}

	p.logger.Debug("Successfully persisted check batch.", zap.Int("count", len(rows)))
	return nil
}

// Stop gracefully shuts down the processor, ensuring all buffered checks are persisted.
func (p *Processor) Stop() {
	p.logger.Info("Stopping check processor...")
	// Idempotent close so a second Stop never panics.
	select {
	case <-p.stopSignal:
		// Already closed
	default:
		close(p.stopSignal)
	}

	// Wait for the main loop and any in-flight persistence to complete.
	p.wg.Wait()
	p.logger.Info("Check processor stopped.")
}
