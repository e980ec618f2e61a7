// internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// TextReporter prints a console summary of each run.
type TextReporter struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewTextReporter takes ownership of w.
func NewTextReporter(w io.WriteCloser) *TextReporter {
	return &TextReporter{w: w}
}

// Write implements Reporter.
func (r *TextReporter) Write(report *schemas.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	verdict := "PASSED"
	if !report.Succeeded() {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "Scenario %s %s in %s (driver %s)\n", report.Scenario, verdict,
		(time.Duration(report.DurationMs) * time.Millisecond).String(), report.Driver)
	fmt.Fprintf(&b, "Target:   %s\n", report.TargetURL)
	if report.Revision != "" {
		fmt.Fprintf(&b, "Revision: %s\n", report.Revision)
	}

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tKIND\tSTEP\tTIME")
	for _, s := range report.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dms\n", s.Index+1, s.Status, s.Kind, s.Name, s.DurationMs)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to render step table: %w", err)
	}

	for _, d := range report.Dialogs {
		fmt.Fprintf(&b, "Dismissed %s dialog: %q\n", d.Type, d.Message)
	}
	if report.Artifact != "" {
		fmt.Fprintf(&b, "Screenshot saved to %s\n", report.Artifact)
	}
	if report.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", report.Error)
	}

	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Close implements Reporter.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}
