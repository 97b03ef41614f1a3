// File: internal/scenario/errors.go
package scenario

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/probeworks/shopflow-cli/api/schemas"
)

// AssertionError is the hard-check failure signal. It aborts the
// scenario that raised it and is reported as a test failure, which keeps
// it distinguishable from infrastructure errors in every report format.
type AssertionError struct {
	Check    string
	Expected string
	Actual   string
	Diff     string
}

func (e *AssertionError) Error() string {
	if e.Diff != "" {
		return fmt.Sprintf("%s: expected %s, got %s\n%s", e.Check, e.Expected, e.Actual, e.Diff)
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Check, e.Expected, e.Actual)
}

func newAssertion(check string, expected, actual interface{}) *AssertionError {
	exp := fmt.Sprint(expected)
	act := fmt.Sprint(actual)
	return &AssertionError{
		Check:    check,
		Expected: exp,
		Actual:   act,
		Diff:     cmp.Diff(exp, act),
	}
}

// IsAssertion reports whether err carries a hard-check failure.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// Classify maps a scenario error to its terminal status: hard-check
// failures are FAILED, anything else that went wrong is ERROR.
func Classify(err error) schemas.Status {
	switch {
	case err == nil:
		return schemas.StatusPassed
	case IsAssertion(err):
		return schemas.StatusFailed
	default:
		return schemas.StatusError
	}
}
