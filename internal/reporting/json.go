// File: internal/reporting/json.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/observability"
)

// JSONReporter writes each run envelope as one indented JSON document.
// Envelopes are encoded as they arrive, so in watch mode every finished
// cycle is on disk before the next one starts.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	mu     sync.Mutex
}

// NewJSONReporter creates a reporter that takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: observability.GetLogger().Named("json_reporter"),
	}
}

// Write encodes the envelope immediately.
func (r *JSONReporter) Write(envelope *schemas.RunEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		r.logger.Error("Failed to encode run envelope", zap.Error(err))
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}

	r.logger.Debug("Wrote run envelope",
		zap.String("run_id", envelope.RunID),
		zap.Int("scenarios", len(envelope.Scenarios)),
	)
	return nil
}

// Close releases the underlying writer.
func (r *JSONReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
