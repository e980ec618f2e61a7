// internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/config"
)

const defaultLaunchTimeout = 60 * time.Second

// Driver launches Chrome over the DevTools protocol using chromedp.
type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ schemas.Driver = (*Driver)(nil)

// New creates a chromedp driver. Nothing is started until Launch.
func New(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{cfg: cfg, logger: logger.Named("chromedp")}
}

// Name implements schemas.Driver.
func (d *Driver) Name() string { return config.DriverChromedp }

// Launch starts the browser process and waits until it accepts DevTools
// connections. The process outlives ctx; it is stopped by Browser.Close.
func (d *Driver) Launch(ctx context.Context) (schemas.Browser, error) {
	d.logger.Info("Launching browser...", zap.Bool("headless", d.cfg.Headless), zap.String("exec_path", d.cfg.ExecPath))

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(d.cfg)...)

	sugar := d.logger.Sugar()
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Infof),
		chromedp.WithErrorf(sugar.Errorf),
	}
	if d.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	timeout := d.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// An empty Run starts the process and attaches to its first target.
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx) }()

	abort := func() {
		browserCancel()
		allocCancel()
	}
	select {
	case err := <-done:
		if err != nil {
			abort()
			return nil, fmt.Errorf("failed to start chrome: %w", err)
		}
	case <-timer.C:
		abort()
		return nil, fmt.Errorf("chrome did not start within %s", timeout)
	case <-ctx.Done():
		abort()
		return nil, ctx.Err()
	}

	d.logger.Info("Browser launched.")
	return &Browser{
		ctx:         browserCtx,
		allocCancel: allocCancel,
		viewport:    d.cfg.Viewport,
		logger:      d.logger,
	}, nil
}
