package schemas

import (
	"fmt"
	"strings"
	"time"
)

// -- Scenario Schemas --

// StepKind identifies what a Step does.
type StepKind string

const (
	StepNavigate      StepKind = "navigate"
	StepFill          StepKind = "fill"
	StepClick         StepKind = "click"
	StepAssertVisible StepKind = "assert_visible"
	StepPause         StepKind = "pause"
	StepLog           StepKind = "log"
)

// NeedsTarget reports whether steps of this kind operate on a located element.
func (k StepKind) NeedsTarget() bool {
	switch k {
	case StepFill, StepClick, StepAssertVisible:
		return true
	}
	return false
}

// Locator describes how to find an element. Exactly one strategy field
// (Placeholder, Role, CSS, Tag, Text) must be set. Within scopes the search
// to the elements matched by a parent locator.
type Locator struct {
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Role        string `json:"role,omitempty" yaml:"role,omitempty"`
	// Name is the accessible name used together with Role.
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	CSS   string `json:"css,omitempty" yaml:"css,omitempty"`
	Tag   string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
	Exact bool   `json:"exact,omitempty" yaml:"exact,omitempty"`
	// First narrows the match to the first element in document order.
	First  bool     `json:"first,omitempty" yaml:"first,omitempty"`
	Within *Locator `json:"within,omitempty" yaml:"within,omitempty"`
}

// ByPlaceholder locates an input by its placeholder text.
func ByPlaceholder(text string) Locator { return Locator{Placeholder: text} }

// ByRole locates an element by ARIA role and accessible name.
func ByRole(role, name string) Locator { return Locator{Role: role, Name: name} }

// ByCSS locates elements with a CSS selector.
func ByCSS(selector string) Locator { return Locator{CSS: selector} }

// ByTag locates elements by tag name.
func ByTag(tag string) Locator { return Locator{Tag: tag} }

// ByText locates the innermost elements whose text contains text.
func ByText(text string) Locator { return Locator{Text: text} }

// FirstMatch returns a copy of l narrowed to its first match.
func (l Locator) FirstMatch() Locator {
	l.First = true
	return l
}

// In returns a copy of l scoped inside parent.
func (l Locator) In(parent Locator) Locator {
	l.Within = &parent
	return l
}

// Strategies returns how many strategy fields are set.
func (l Locator) Strategies() int {
	n := 0
	for _, s := range []string{l.Placeholder, l.Role, l.CSS, l.Tag, l.Text} {
		if s != "" {
			n++
		}
	}
	return n
}

// String renders the locator chain in a selector-like notation used in logs and errors,
// e.g. `css=[data-radix-accordion-item] >> first >> role=button`.
func (l Locator) String() string {
	var parts []string
	if l.Within != nil {
		parts = append(parts, l.Within.String())
	}
	var self string
	switch {
	case l.Placeholder != "":
		self = fmt.Sprintf("placeholder=%q", l.Placeholder)
	case l.Role != "":
		self = "role=" + l.Role
		if l.Name != "" {
			self += fmt.Sprintf("[name=%q]", l.Name)
		}
	case l.CSS != "":
		self = "css=" + l.CSS
	case l.Tag != "":
		self = "tag=" + l.Tag
	case l.Text != "":
		self = fmt.Sprintf("text=%q", l.Text)
	default:
		self = "<empty>"
	}
	if l.Exact {
		self += " exact"
	}
	parts = append(parts, self)
	if l.First {
		parts = append(parts, "first")
	}
	return strings.Join(parts, " >> ")
}

// Describe is a short human phrase for what the locator expects to find.
func (l Locator) Describe() string {
	switch {
	case l.Text != "":
		return l.Text
	case l.Role != "" && l.Name != "":
		return fmt.Sprintf("%s %q", l.Role, l.Name)
	case l.Placeholder != "":
		return fmt.Sprintf("input with placeholder %q", l.Placeholder)
	case l.Tag != "":
		return l.Tag
	}
	return l.String()
}

// Step is one ordered action or assertion in a Scenario.
type Step struct {
	// Name states the intent of the step, e.g. "Search for California".
	Name   string   `json:"name" yaml:"name"`
	Kind   StepKind `json:"kind" yaml:"kind"`
	Target *Locator `json:"target,omitempty" yaml:"target,omitempty"`
	// Value is the text entered by fill steps. An empty value clears the field.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// URL is the destination for navigate steps, relative to the base URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Timeout bounds navigate and assert_visible steps; other kinds reject it.
	// Zero makes assert_visible check once and navigate use the runner's
	// navigation timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Duration is the fixed sleep of a pause step.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Message is emitted by log steps.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Label returns the step name, falling back to a generated description.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Target != nil {
		return fmt.Sprintf("%s %s", s.Kind, s.Target.String())
	}
	return string(s.Kind)
}

// Scenario is an ordered list of steps run against one target page.
type Scenario struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Path is the entry page, resolved against the runner's base URL.
	Path string `json:"path" yaml:"path"`
	// NavigationTimeout overrides the runner default for the entry navigation.
	NavigationTimeout time.Duration `json:"navigation_timeout,omitempty" yaml:"navigation_timeout,omitempty"`
	Steps             []Step        `json:"steps" yaml:"steps"`
	// Artifact overrides the configured screenshot path.
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	FullPage bool   `json:"full_page,omitempty" yaml:"full_page,omitempty"`
}
