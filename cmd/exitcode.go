// File: cmd/exitcode.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/scenario-cli/internal/runner"
	"github.com/xkilldash9x/scenario-cli/internal/scenario"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitNavigation  = 3
	ExitLocate      = 4
	ExitInteraction = 5
	ExitAssertion   = 6
	// ExitInterrupted follows the shell convention of 128+SIGINT.
	ExitInterrupted = 130
)

// usageError marks failures caused by configuration or command-line usage.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Execute to the process exit status.
// Only a nil error exits with ExitOK; an interrupted run never verified anything.
func ExitCode(err error) int {
	var (
		nav      *runner.NavigationError
		locate   *runner.LocateFailure
		interact *runner.InteractionError
		timeout  *runner.AssertionTimeout
		invalid  *scenario.ValidationError
		usage    *usageError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &nav):
		return ExitNavigation
	case errors.As(err, &locate):
		return ExitLocate
	case errors.As(err, &interact):
		return ExitInteraction
	case errors.As(err, &timeout):
		return ExitAssertion
	case errors.As(err, &usage), errors.As(err, &invalid):
		return ExitUsage
	}
	return ExitFailure
}
