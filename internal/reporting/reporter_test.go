// File: internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/reporting"
)

const testToolVersion = "v1.0.0-test"

// bufferCloser lets the reporters own an in-memory writer.
type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func sampleRunEnvelope() *schemas.RunEnvelope {
	started := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

	passed := schemas.ScenarioResult{
		ScenarioID: "scn-passed",
		Keyword:    "electronics",
		Status:     schemas.StatusPassed,
		StartedAt:  started,
		Duration:   95 * time.Second,
		Product: &schemas.ProductSummary{
			Title:        "Mi Band 9 Smart Bracelet",
			RawPrice:     "PKR 3,499",
			Price:        3499,
			PriceKnown:   true,
			FreeShipping: true,
			URL:          "https://www.daraz.pk/products/mi-band-9-i10443.html",
		},
		Checks: []schemas.CheckResult{
			{
				ScenarioID: "scn-passed", Name: "product count after search",
				Kind: schemas.CheckHard, Status: schemas.StatusPassed,
				Expected: "at least 2", Actual: "24", ObservedAt: started.Add(10 * time.Second),
			},
			{
				ScenarioID: "scn-passed", Name: "product title non-empty",
				Kind: schemas.CheckHard, Status: schemas.StatusPassed,
				Expected: "non-empty title", Actual: "Mi Band 9 Smart Bracelet", ObservedAt: started.Add(80 * time.Second),
			},
			{
				ScenarioID: "scn-passed", Name: "product price within range",
				Kind: schemas.CheckSoft, Status: schemas.StatusFailed,
				Expected: "500 to 5000", Actual: "9999", Detail: "PKR 9,999", ObservedAt: started.Add(85 * time.Second),
			},
			{
				ScenarioID: "scn-passed", Name: "brand filter",
				Kind: schemas.CheckInfo, Status: schemas.StatusPassed,
				Actual: "Xiaomi", ObservedAt: started.Add(30 * time.Second),
			},
		},
	}

	failed := schemas.ScenarioResult{
		ScenarioID:     "scn-failed",
		Keyword:        "groceries",
		Status:         schemas.StatusFailed,
		FailureMessage: `check "product count after search" failed`,
		StartedAt:      started.Add(time.Second),
		Duration:       41 * time.Second,
		Checks: []schemas.CheckResult{
			{
				ScenarioID: "scn-failed", Name: "product count after search",
				Kind: schemas.CheckHard, Status: schemas.StatusFailed,
				Expected: "at least 2", Actual: "1", ObservedAt: started.Add(12 * time.Second),
			},
		},
	}

	errored := schemas.ScenarioResult{
		ScenarioID:     "scn-errored",
		Keyword:        "beauty",
		Status:         schemas.StatusError,
		FailureMessage: "scenario environment: browser not reachable",
		StartedAt:      started.Add(2 * time.Second),
		Duration:       3 * time.Second,
	}

	return &schemas.RunEnvelope{
		RunID:       "run-0001",
		Tool:        "shopflow-cli",
		Version:     testToolVersion,
		Target:      "https://www.daraz.pk",
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Minute),
		Scenarios:   []schemas.ScenarioResult{passed, failed, errored},
	}
}

// TestNew_Success_Stdout tests creating each reporter format writing to stdout.
func TestNew_Success_Stdout(t *testing.T) {
	for _, format := range []string{"json", "junit", "text"} {
		t.Run(format, func(t *testing.T) {
			// Test explicit stdout
			r, err := reporting.New(format, "stdout", testToolVersion)
			require.NoError(t, err)
			assert.NotNil(t, r)
			// Close must be a no-op for the stdout wrapper.
			assert.NoError(t, r.Close())

			// Test implicit stdout (empty path)
			r, err = reporting.New(format, "", testToolVersion)
			require.NoError(t, err)
			assert.NotNil(t, r)
			assert.NoError(t, r.Close())
		})
	}
}

// TestNew_Success_File tests creating a reporter writing to a file.
func TestNew_Success_File(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "report.xml")

	r, err := reporting.New("junit", tmpFile, testToolVersion)
	require.NoError(t, err)
	assert.NotNil(t, r)

	// File should exist now (created by os.Create in New)
	_, err = os.Stat(tmpFile)
	assert.NoError(t, err, "Output file should have been created")

	require.NoError(t, r.Write(sampleRunEnvelope()))

	// Closing the reporter finalizes the file and closes the handle.
	require.NoError(t, r.Close())

	content, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

// TestNew_Failure_UnsupportedFormat tests handling of unknown formats and ensures cleanup.
func TestNew_Failure_UnsupportedFormat(t *testing.T) {
	// Test with stdout (no file cleanup needed)
	r, err := reporting.New("sarif", "stdout", testToolVersion)
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format: sarif")

	// Test with file (requires file cleanup verification)
	tmpFile := filepath.Join(t.TempDir(), "output.txt")
	r, err = reporting.New("sarif", tmpFile, testToolVersion)
	assert.Error(t, err)
	assert.Nil(t, r)

	// The file is created by os.Create before the switch statement, but
	// cleanup() closes the handle on error. It exists and is empty.
	info, err := os.Stat(tmpFile)
	require.NoError(t, err, "File should still exist after failure")
	assert.Equal(t, int64(0), info.Size(), "File should be empty as initialization failed")
}

// TestNew_Failure_FileCreation tests errors during output file creation.
func TestNew_Failure_FileCreation(t *testing.T) {
	// A directory path cannot be opened as a file.
	invalidPath := t.TempDir()

	r, err := reporting.New("json", invalidPath, testToolVersion)
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "failed to create output file")
}
