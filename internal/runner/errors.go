package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// ErrNotVisible is the cause of an AssertionTimeout whose element matched but never became visible.
var ErrNotVisible = errors.New("element matched but is not visible")

// NavigationError means the page did not reach the load state within the navigation timeout.
// Step is empty and Index is -1 for the entry navigation that precedes the steps.
type NavigationError struct {
	Step    string
	Index   int
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("NavigationError: step %d (%s): %s did not load within %s: %v", e.Index+1, e.Step, e.URL, e.Timeout, e.Err)
	}
	return fmt.Sprintf("NavigationError: %s did not load within %s: %v", e.URL, e.Timeout, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// LocateFailure means a fill or click target matched no element.
type LocateFailure struct {
	Step    string
	Index   int
	Locator schemas.Locator
	Err     error
}

func (e *LocateFailure) Error() string {
	return fmt.Sprintf("LocateFailure: step %d (%s): nothing matches %s: %v", e.Index+1, e.Step, e.Locator, e.Err)
}

func (e *LocateFailure) Unwrap() error { return e.Err }

// InteractionError means the target exists but the action could not be performed on it.
type InteractionError struct {
	Step    string
	Index   int
	Action  schemas.StepKind
	Locator schemas.Locator
	Err     error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("InteractionError: step %d (%s): cannot %s %s: %v", e.Index+1, e.Step, e.Action, e.Locator, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// AssertionTimeout means an element was not visible before the step's bound elapsed.
type AssertionTimeout struct {
	Step     string
	Index    int
	Timeout  time.Duration
	Expected string
	Waited   time.Duration
	Err      error
}

// Error renders as AssertionTimeout(<timeout ms>, "<expected>") followed by the time waited.
func (e *AssertionTimeout) Error() string {
	return fmt.Sprintf("AssertionTimeout(%d, %q): waited %s at step %d (%s): %v",
		e.Timeout.Milliseconds(), e.Expected, e.Waited.Round(time.Millisecond), e.Index+1, e.Step, e.Err)
}

func (e *AssertionTimeout) Unwrap() error { return e.Err }

// Diagnose returns a one-line explanation of err naming the step intent and
// the condition that was not met. Unknown errors are returned as is.
func Diagnose(err error) string {
	var (
		navErr    *NavigationError
		locErr    *LocateFailure
		actErr    *InteractionError
		assertErr *AssertionTimeout
	)
	switch {
	case errors.As(err, &assertErr):
		return fmt.Sprintf("%q failed: %s was not visible within %s", assertErr.Step, assertErr.Expected, assertErr.Timeout)
	case errors.As(err, &locErr):
		return fmt.Sprintf("%q failed: no element matches %s", locErr.Step, locErr.Locator.Describe())
	case errors.As(err, &actErr):
		return fmt.Sprintf("%q failed: could not %s %s: %v", actErr.Step, actErr.Action, actErr.Locator.Describe(), actErr.Err)
	case errors.As(err, &navErr) && navErr.Step != "":
		return fmt.Sprintf("%q failed: page %s did not load within %s", navErr.Step, navErr.URL, navErr.Timeout)
	case errors.As(err, &navErr):
		return fmt.Sprintf("page %s did not load within %s", navErr.URL, navErr.Timeout)
	case err == nil:
		return ""
	}
	return err.Error()
}
