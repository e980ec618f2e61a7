// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/config"
)

// Browser is a running Chrome process owned by a Driver.
type Browser struct {
	ctx         context.Context
	allocCancel context.CancelFunc
	viewport    config.ViewportConfig
	logger      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.Browser = (*Browser)(nil)

// NewPage opens a new tab and applies the configured viewport.
func (b *Browser) NewPage(ctx context.Context) (schemas.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	p := newPage(tabCtx, tabCancel, b.logger)

	// Listen before the target exists so no early dialog is missed.
	chromedp.ListenTarget(tabCtx, p.onEvent)

	var tasks chromedp.Tasks
	tasks = append(tasks, page.Enable())
	if b.viewport.Width > 0 && b.viewport.Height > 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(b.viewport.Width), int64(b.viewport.Height)))
	}

	// The first Run on a tab context creates the target, and its context
	// must be the tab context itself, so the caller's deadline is applied here.
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tabCtx, tasks) }()
	select {
	case err := <-done:
		if err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to create tab: %w", err)
		}
	case <-ctx.Done():
		tabCancel()
		return nil, ctx.Err()
	}
	return p, nil
}

// Close shuts Chrome down and waits for the process to exit or ctx to end.
func (b *Browser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(b.ctx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Warn("Graceful browser shutdown failed.", zap.Error(err))
				b.closeErr = fmt.Errorf("failed to close browser: %w", err)
			}
		case <-ctx.Done():
			b.logger.Warn("Timed out waiting for the browser to close. Killing the process.", zap.Error(ctx.Err()))
			b.closeErr = fmt.Errorf("browser close interrupted: %w", ctx.Err())
		}
		// Kills the process if it is still around and waits for it.
		b.allocCancel()
		b.logger.Info("Browser closed.")
	})
	return b.closeErr
}
