package scenario

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// ValidationError lists every problem found in a scenario.
type ValidationError struct {
	Scenario string
	Problems []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("scenario %q is invalid", e.Scenario)
	for _, p := range e.Problems {
		msg += "\n  - " + p
	}
	return msg
}

// Validate checks that sc can be executed. It reports all problems at once.
func Validate(sc *schemas.Scenario) error {
	if sc == nil {
		return errors.New("scenario is nil")
	}
	v := &ValidationError{Scenario: sc.Name}
	add := func(format string, args ...any) { v.Problems = append(v.Problems, fmt.Sprintf(format, args...)) }

	if sc.Name == "" {
		add("name is required")
	}
	if sc.NavigationTimeout < 0 {
		add("navigation_timeout must not be negative")
	}
	if len(sc.Steps) == 0 {
		add("at least one step is required")
	}

	for i, step := range sc.Steps {
		at := fmt.Sprintf("step %d (%s)", i+1, step.Label())
		switch step.Kind {
		case schemas.StepNavigate:
			if step.URL == "" {
				add("%s: navigate requires url", at)
			}
		case schemas.StepFill, schemas.StepClick, schemas.StepAssertVisible:
		case schemas.StepPause:
			if step.Duration <= 0 {
				add("%s: pause requires a positive duration", at)
			}
		case schemas.StepLog:
			if step.Message == "" {
				add("%s: log requires message", at)
			}
		case "":
			add("%s: kind is required", at)
			continue
		default:
			add("%s: unknown kind %q", at, step.Kind)
			continue
		}

		if step.Kind.NeedsTarget() {
			if step.Target == nil {
				add("%s: %s requires target", at, step.Kind)
			} else {
				for _, problem := range validateLocator(*step.Target) {
					add("%s: target %s", at, problem)
				}
			}
		} else if step.Target != nil {
			add("%s: %s does not take a target", at, step.Kind)
		}
		switch {
		case step.Timeout < 0:
			add("%s: timeout must not be negative", at)
		case step.Timeout > 0 && step.Kind != schemas.StepNavigate && step.Kind != schemas.StepAssertVisible:
			add("%s: %s does not take a timeout", at, step.Kind)
		}
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func validateLocator(l schemas.Locator) []string {
	var problems []string
	switch n := l.Strategies(); {
	case n == 0:
		problems = append(problems, "needs one of placeholder, role, css, tag or text")
	case n > 1:
		problems = append(problems, fmt.Sprintf("sets %d strategies, want exactly one", n))
	}
	if l.Name != "" && l.Role == "" {
		problems = append(problems, "name is only valid with role")
	}
	if l.Within != nil {
		for _, p := range validateLocator(*l.Within) {
			problems = append(problems, "within: "+p)
		}
	}
	return problems
}
