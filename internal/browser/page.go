// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

const dialogDismissTimeout = 5 * time.Second

// Page is one Chrome tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu        sync.Mutex
	handler   func(schemas.Dialog)
	handlerID uint64

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.Page = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Page {
	return &Page{ctx: ctx, cancel: cancel, logger: logger}
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

// onEvent runs on the chromedp event loop and must not block.
func (p *Page) onEvent(ev interface{}) {
	if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
		d := &dialog{typ: string(e.Type), message: e.Message, page: p}
		go p.deliver(d)
	}
}

func (p *Page) deliver(d *dialog) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()

	if h == nil {
		p.logger.Debug("Dismissing unobserved dialog.", zap.String("type", d.typ))
		if err := d.Dismiss(); err != nil {
			p.logger.Warn("Failed to dismiss dialog.", zap.Error(err))
		}
		return
	}
	h(d)
	// A handler that forgot to dismiss would leave the page blocked.
	_ = d.Dismiss()
}

// Navigate loads url and waits for the load event or the deadline of ctx.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("navigation to %s timed out: %w", url, ctx.Err())
			}
			return fmt.Errorf("navigation to %s interrupted: %w", url, ctx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Locate implements schemas.Page.
func (p *Page) Locate(loc schemas.Locator) schemas.Element {
	return &Element{page: p, loc: loc}
}

// Screenshot writes a PNG of the viewport, or of the whole document when fullPage is set.
func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 selects PNG encoding.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := chromedp.Run(runCtx, action); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(p.ctx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				p.closeErr = fmt.Errorf("failed to close tab: %w", err)
			}
		case <-ctx.Done():
			p.cancel()
			p.closeErr = fmt.Errorf("tab close interrupted: %w", ctx.Err())
		}
	})
	return p.closeErr
}

// dialog is a pending JavaScript dialog on a Page.
type dialog struct {
	typ     string
	message string
	page    *Page

	once sync.Once
	err  error
}

func (d *dialog) Type() string    { return d.typ }
func (d *dialog) Message() string { return d.message }

// Dismiss cancels the dialog. Only the first call talks to the browser;
// later calls return the first result.
func (d *dialog) Dismiss() error {
	d.once.Do(func() {
		ctx, cancel := context.WithTimeout(d.page.ctx, dialogDismissTimeout)
		defer cancel()
		if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(false)); err != nil {
			d.err = fmt.Errorf("failed to dismiss %s dialog: %w", d.typ, err)
		}
	})
	return d.err
}
