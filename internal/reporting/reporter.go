// File: internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/probeworks/shopflow-cli/api/schemas"
)

// Reporter defines the interface for writing run results to an output.
type Reporter interface {
	// Write processes a single run envelope.
	Write(envelope *schemas.RunEnvelope) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// The returned reporter takes ownership of the output and releases it in Close.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	// Close the file handle again if no reporter ends up owning it.
	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "json":
		return NewJSONReporter(writer), nil
	case "junit":
		return NewJUnitReporter(writer, toolVersion), nil
	case "text":
		return NewTextReporter(writer), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
