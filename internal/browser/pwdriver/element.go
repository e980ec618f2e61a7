// internal/browser/pwdriver/element.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// attemptTimeout caps Playwright's auto-wait for one action so that the
// runner's retry loop stays in charge of the overall window.
const attemptTimeout = time.Second

// Element is a schemas.Element backed by a Playwright locator chain.
type Element struct {
	page playwright.Page
	loc  schemas.Locator
}

var _ schemas.Element = (*Element)(nil)

// Locator implements schemas.Element.
func (e *Element) Locator() schemas.Locator { return e.loc }

// Probe implements schemas.Element.
func (e *Element) Probe(ctx context.Context) (schemas.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return schemas.ElementState{}, err
	}
	l := e.resolve()
	count, err := l.Count()
	if err != nil {
		return schemas.ElementState{}, fmt.Errorf("failed to count %s: %w", e.loc, err)
	}
	state := schemas.ElementState{Count: count}
	if count == 0 {
		return state, nil
	}
	first := l.First()
	if state.Visible, err = first.IsVisible(); err != nil {
		return schemas.ElementState{}, fmt.Errorf("failed to check visibility of %s: %w", e.loc, err)
	}
	if state.Enabled, err = first.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: playwright.Float(attemptMillis(ctx))}); err != nil {
		return schemas.ElementState{}, fmt.Errorf("failed to check state of %s: %w", e.loc, err)
	}
	return state, nil
}

// Fill implements schemas.Element.
func (e *Element) Fill(ctx context.Context, text string) error {
	return e.act(ctx, func(l playwright.Locator, timeout float64) error {
		return l.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(timeout)})
	})
}

// Click implements schemas.Element.
func (e *Element) Click(ctx context.Context) error {
	return e.act(ctx, func(l playwright.Locator, timeout float64) error {
		return l.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(timeout)})
	})
}

func (e *Element) act(ctx context.Context, do func(playwright.Locator, float64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := e.resolve()
	count, err := l.Count()
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", e.loc, err)
	}
	if count == 0 {
		return schemas.ErrElementNotFound
	}
	if err := do(l.First(), attemptMillis(ctx)); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %v", schemas.ErrNotActionable, err)
		}
		return err
	}
	return nil
}

// resolve builds the Playwright locator chain for e.loc.
func (e *Element) resolve() playwright.Locator {
	return chain(e.page.Locator(":root"), e.loc)
}

func chain(root playwright.Locator, loc schemas.Locator) playwright.Locator {
	if loc.Within != nil {
		root = chain(root, *loc.Within)
	}
	exact := playwright.Bool(loc.Exact)

	var l playwright.Locator
	switch {
	case loc.Placeholder != "":
		l = root.GetByPlaceholder(loc.Placeholder, playwright.LocatorGetByPlaceholderOptions{Exact: exact})
	case loc.Role != "":
		opts := playwright.LocatorGetByRoleOptions{Exact: exact}
		if loc.Name != "" {
			opts.Name = loc.Name
		}
		l = root.GetByRole(playwright.AriaRole(loc.Role), opts)
	case loc.CSS != "":
		l = root.Locator(loc.CSS)
	case loc.Tag != "":
		l = root.Locator(loc.Tag)
	default:
		l = root.GetByText(loc.Text, playwright.LocatorGetByTextOptions{Exact: exact})
	}
	if loc.First {
		l = l.First()
	}
	return l
}

// attemptMillis is the per-call Playwright timeout: attemptTimeout, or less
// when ctx expires sooner.
func attemptMillis(ctx context.Context) float64 {
	ms := float64(attemptTimeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		ms = math.Min(ms, float64(time.Until(deadline).Milliseconds()))
	}
	return math.Max(ms, 1)
}
