// internal/browser/element.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// Element resolves its locator in the page on every operation.
type Element struct {
	page *Page
	loc  schemas.Locator
}

var _ schemas.Element = (*Element)(nil)

// resolverResult mirrors the object returned by resolverJS.
type resolverResult struct {
	Count   int     `json:"count"`
	Visible bool    `json:"visible"`
	Enabled bool    `json:"enabled"`
	Status  string  `json:"status"`
	Reason  string  `json:"reason"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Error   string  `json:"error"`
}

// Locator implements schemas.Element.
func (e *Element) Locator() schemas.Locator { return e.loc }

// Probe implements schemas.Element.
func (e *Element) Probe(ctx context.Context) (schemas.ElementState, error) {
	res, err := e.eval(ctx, "probe", "")
	if err != nil {
		return schemas.ElementState{}, err
	}
	return schemas.ElementState{Count: res.Count, Visible: res.Visible, Enabled: res.Enabled}, nil
}

// Fill sets the value of the matched input and fires input and change events.
func (e *Element) Fill(ctx context.Context, text string) error {
	res, err := e.eval(ctx, "fill", text)
	if err != nil {
		return err
	}
	return res.actionErr()
}

// Click scrolls the element into view and clicks its centre with the mouse.
func (e *Element) Click(ctx context.Context) error {
	res, err := e.eval(ctx, "point", "")
	if err != nil {
		return err
	}
	if err := res.actionErr(); err != nil {
		return err
	}

	runCtx, cancel := CombineContext(e.page.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.MouseClickXY(res.X, res.Y)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("mouse click failed: %w", err)
	}
	return nil
}

func (e *Element) eval(ctx context.Context, op, arg string) (resolverResult, error) {
	spec, err := json.Marshal(e.loc)
	if err != nil {
		return resolverResult{}, fmt.Errorf("failed to encode locator: %w", err)
	}
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return resolverResult{}, fmt.Errorf("failed to encode argument: %w", err)
	}
	opJSON, _ := json.Marshal(op)
	expr := fmt.Sprintf("(%s)(%s, %s, %s)", resolverJS, spec, opJSON, argJSON)

	runCtx, cancel := CombineContext(e.page.ctx, ctx)
	defer cancel()

	var res resolverResult
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &res)); err != nil {
		if ctx.Err() != nil {
			return resolverResult{}, ctx.Err()
		}
		return resolverResult{}, fmt.Errorf("failed to evaluate %s for %s: %w", op, e.loc, err)
	}
	if res.Error != "" {
		return resolverResult{}, fmt.Errorf("invalid locator %s: %s", e.loc, res.Error)
	}
	return res, nil
}

func (r resolverResult) actionErr() error {
	switch r.Status {
	case "ok":
		return nil
	case "missing":
		return schemas.ErrElementNotFound
	case "not_actionable":
		if r.Reason == "" {
			return schemas.ErrNotActionable
		}
		return fmt.Errorf("%w: %s", schemas.ErrNotActionable, r.Reason)
	}
	return fmt.Errorf("unexpected resolver status %q", r.Status)
}
