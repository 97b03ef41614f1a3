// File: internal/reporting/text.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/probeworks/shopflow-cli/api/schemas"
)

// TextReporter prints a human-readable summary of each run.
type TextReporter struct {
	writer io.WriteCloser
	mu     sync.Mutex
}

// NewTextReporter creates a reporter that takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

// Write renders the envelope as a console summary.
func (r *TextReporter) Write(envelope *schemas.RunEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	passed, failed, errored := envelope.Tally()

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s against %s\n", envelope.RunID, envelope.Target)
	fmt.Fprintf(&b, "Started %s, took %s\n\n",
		envelope.StartedAt.Format("2006-01-02 15:04:05 MST"),
		envelope.CompletedAt.Sub(envelope.StartedAt).Round(10*time.Millisecond))

	for _, scenario := range envelope.Scenarios {
		fmt.Fprintf(&b, "[%s] %s (%.1fs)\n", scenario.Status, scenario.Keyword, scenario.Duration.Seconds())

		if scenario.Product != nil && scenario.Product.Title != "" {
			shipping := ""
			if scenario.Product.FreeShipping {
				shipping = ", free shipping"
			}
			fmt.Fprintf(&b, "    product: %s (%s%s)\n", scenario.Product.Title, scenario.Product.RawPrice, shipping)
		}

		for _, check := range scenario.Checks {
			if check.Status != schemas.StatusFailed {
				continue
			}
			fmt.Fprintf(&b, "    %s check %q: expected %s, got %s\n",
				strings.ToLower(string(check.Kind)), check.Name, check.Expected, check.Actual)
		}

		if scenario.Status == schemas.StatusError && scenario.FailureMessage != "" {
			fmt.Fprintf(&b, "    error: %s\n", scenario.FailureMessage)
		}
	}

	fmt.Fprintf(&b, "\n%d passed, %d failed, %d errored (%d scenarios)\n",
		passed, failed, errored, len(envelope.Scenarios))

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (r *TextReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
