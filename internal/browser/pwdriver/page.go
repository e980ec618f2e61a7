// internal/browser/pwdriver/page.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// Page wraps a Playwright page.
type Page struct {
	page   playwright.Page
	logger *zap.Logger

	mu        sync.Mutex
	handler   func(schemas.Dialog)
	handlerID uint64

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.Page = (*Page)(nil)

func newPage(pg playwright.Page, logger *zap.Logger) *Page {
	p := &Page{page: pg, logger: logger}
	// Playwright only auto-dismisses dialogs while no listener is attached, so
	// the single listener registered here dismisses unobserved dialogs itself.
	pg.OnDialog(p.deliver)
	return p
}

// OnDialog implements schemas.Page. A later registration replaces an earlier one.
func (p *Page) OnDialog(handler func(schemas.Dialog)) func() {
	p.mu.Lock()
	p.handlerID++
	id := p.handlerID
	p.handler = handler
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.handlerID == id {
			p.handler = nil
		}
	}
}

func (p *Page) deliver(pd playwright.Dialog) {
	d := &dialog{Dialog: pd}
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		h(d)
	}
	if err := d.Dismiss(); err != nil {
		p.logger.Warn("Failed to dismiss dialog.", zap.Error(err))
	}
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	timeout, err := remaining(ctx)
	if err != nil {
		return err
	}
	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeout),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("navigation to %s timed out: %w", url, err)
	}
	return fmt.Errorf("navigation to %s failed: %w", url, err)
}

// Locate implements schemas.Page.
func (p *Page) Locate(loc schemas.Locator) schemas.Element {
	return &Element{page: p.page, loc: loc}
}

// Screenshot writes a PNG of the viewport, or of the whole page when fullPage is set.
func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	timeout, err := remaining(ctx)
	if err != nil {
		return err
	}
	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  playwright.Float(timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// Close closes the page.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- p.page.Close() }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
				p.closeErr = fmt.Errorf("failed to close page: %w", err)
			}
		case <-ctx.Done():
			p.closeErr = fmt.Errorf("page close interrupted: %w", ctx.Err())
		}
	})
	return p.closeErr
}

// dialog makes Playwright's Dismiss safe to call more than once.
type dialog struct {
	playwright.Dialog
	once sync.Once
	err  error
}

func (d *dialog) Dismiss() error {
	d.once.Do(func() { d.err = d.Dialog.Dismiss() })
	return d.err
}

// remaining converts the deadline of ctx into a Playwright timeout in
// milliseconds. Zero disables Playwright's own timeout.
func remaining(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, nil
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		return 0, context.DeadlineExceeded
	}
	return ms, nil
}
