// File: internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/observability"
)

// JUnitReporter renders run envelopes as a JUnit XML document so CI
// systems can surface scenario checks as test cases. It is thread safe.
type JUnitReporter struct {
	writer      io.WriteCloser
	logger      *zap.Logger
	toolVersion string

	// mu protects the buffered envelopes.
	mu        sync.Mutex
	envelopes []*schemas.RunEnvelope
}

// NewJUnitReporter creates a reporter that takes ownership of the writer.
// The tool version is injected so the report carries the build that produced it.
func NewJUnitReporter(writer io.WriteCloser, toolVersion string) *JUnitReporter {
	return &JUnitReporter{
		writer:      writer,
		logger:      observability.GetLogger().Named("junit_reporter"),
		toolVersion: toolVersion,
	}
}

// Write buffers the envelope. JUnit needs document-level totals, so the
// XML is assembled once in Close.
func (r *JUnitReporter) Write(envelope *schemas.RunEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, envelope)
	return nil
}

// Close finalizes the XML document and writes it to the output writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "shopflow-cli")

	var totalTests, totalFailures, totalErrors int
	for _, envelope := range r.envelopes {
		for _, scenario := range envelope.Scenarios {
			tests, failures, errored := r.addSuite(root, envelope, scenario)
			totalTests += tests
			totalFailures += failures
			totalErrors += errored
		}
	}
	root.CreateAttr("tests", strconv.Itoa(totalTests))
	root.CreateAttr("failures", strconv.Itoa(totalFailures))
	root.CreateAttr("errors", strconv.Itoa(totalErrors))

	r.logger.Info("Finalizing JUnit report",
		zap.Int("total_tests", totalTests),
		zap.Int("total_failures", totalFailures),
		zap.Int("total_errors", totalErrors),
	)

	doc.Indent(2)
	_, encodeErr := doc.WriteTo(r.writer)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode JUnit report", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JUnit output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// addSuite renders one scenario as a testsuite element and returns its counters.
func (r *JUnitReporter) addSuite(root *etree.Element, envelope *schemas.RunEnvelope, scenario schemas.ScenarioResult) (tests, failures, errored int) {
	suite := root.CreateElement("testsuite")
	suite.CreateAttr("name", fmt.Sprintf("shopflow: %s", scenario.Keyword))
	suite.CreateAttr("id", scenario.ScenarioID)
	suite.CreateAttr("hostname", envelope.Target)
	suite.CreateAttr("timestamp", scenario.StartedAt.UTC().Format(time.RFC3339))
	suite.CreateAttr("time", formatSeconds(scenario.Duration))

	props := suite.CreateElement("properties")
	addProperty(props, "run_id", envelope.RunID)
	addProperty(props, "tool_version", r.toolVersion)
	if scenario.Product != nil && scenario.Product.Title != "" {
		addProperty(props, "product_title", scenario.Product.Title)
	}

	for _, check := range scenario.Checks {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", check.Name)
		tc.CreateAttr("classname", scenario.Keyword)

		switch {
		case check.Status == schemas.StatusFailed:
			failure := tc.CreateElement("failure")
			failure.CreateAttr("type", string(check.Kind))
			failure.CreateAttr("message", fmt.Sprintf("expected %s, got %s", check.Expected, check.Actual))
			if check.Detail != "" {
				failure.SetText(check.Detail)
			}
			failures++
		case check.Kind == schemas.CheckInfo && check.Actual != "":
			out := tc.CreateElement("system-out")
			out.SetText(check.Actual)
		}
		tests++
	}

	// An infrastructure failure surfaces as one synthetic errored case so
	// the scenario stays visible even when no check ever ran.
	if scenario.Status == schemas.StatusError {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", "scenario execution")
		tc.CreateAttr("classname", scenario.Keyword)
		errElem := tc.CreateElement("error")
		errElem.CreateAttr("message", scenario.FailureMessage)
		tests++
		errored++
	}

	suite.CreateAttr("tests", strconv.Itoa(tests))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("errors", strconv.Itoa(errored))
	return tests, failures, errored
}

func addProperty(parent *etree.Element, name, value string) {
	prop := parent.CreateElement("property")
	prop.CreateAttr("name", name)
	prop.CreateAttr("value", value)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
