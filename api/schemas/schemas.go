package schemas

import "time"

// Status is the terminal state of a scenario or an individual check.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusError  Status = "ERROR"
)

// CheckKind classifies how a check's outcome affects its scenario.
type CheckKind string

const (
	// CheckHard aborts the scenario when it fails.
	CheckHard CheckKind = "HARD"
	// CheckSoft is recorded but never aborts the scenario.
	CheckSoft CheckKind = "SOFT"
	// CheckInfo carries an observation with no pass/fail meaning.
	CheckInfo CheckKind = "INFO"
)

// CheckResult records a single verification performed during a scenario.
type CheckResult struct {
	ScenarioID string    `json:"scenario_id"`
	Name       string    `json:"name"`
	Kind       CheckKind `json:"kind"`
	Status     Status    `json:"status"`
	Expected   string    `json:"expected,omitempty"`
	Actual     string    `json:"actual,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// ProductSummary captures what the flow observed on a product detail page.
type ProductSummary struct {
	Title        string  `json:"title"`
	RawPrice     string  `json:"raw_price,omitempty"`
	Price        float64 `json:"price,omitempty"`
	PriceKnown   bool    `json:"price_known"`
	FreeShipping bool    `json:"free_shipping"`
	URL          string  `json:"url,omitempty"`
}

// ScenarioResult is the outcome of one end-to-end shopping flow.
type ScenarioResult struct {
	ScenarioID     string          `json:"scenario_id"`
	Keyword        string          `json:"keyword"`
	Status         Status          `json:"status"`
	Checks         []CheckResult   `json:"checks"`
	Product        *ProductSummary `json:"product,omitempty"`
	FailureMessage string          `json:"failure_message,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
}

// RunEnvelope contains the results of a full probing run.
type RunEnvelope struct {
	RunID       string           `json:"run_id"`
	Tool        string           `json:"tool"`
	Version     string           `json:"version"`
	Target      string           `json:"target"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Scenarios   []ScenarioResult `json:"scenarios"`
}

// Tally counts scenarios per terminal status.
func (e *RunEnvelope) Tally() (passed, failed, errored int) {
	for _, s := range e.Scenarios {
		switch s.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		default:
			errored++
		}
	}
	return passed, failed, errored
}
