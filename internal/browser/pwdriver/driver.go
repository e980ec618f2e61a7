// Package pwdriver implements the browser driver contract on top of
// Playwright's Chromium build.
package pwdriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/config"
)

const (
	installTimeout       = 5 * time.Minute
	defaultLaunchTimeout = 60 * time.Second
)

// Driver launches Chromium through the Playwright driver process.
type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ schemas.Driver = (*Driver)(nil)

// New creates a Playwright driver. Nothing is installed or started until Launch.
func New(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{cfg: cfg, logger: logger.Named("playwright")}
}

// Name implements schemas.Driver.
func (d *Driver) Name() string { return config.DriverPlaywright }

// Launch starts the Playwright driver and a Chromium instance.
func (d *Driver) Launch(ctx context.Context) (schemas.Browser, error) {
	if d.cfg.Install {
		if err := d.ensureInstallation(ctx); err != nil {
			return nil, err
		}
	}

	type launched struct {
		pw      *playwright.Playwright
		browser playwright.Browser
		err     error
	}
	result := make(chan launched, 1)
	go func() {
		pw, err := playwright.Run()
		if err != nil {
			result <- launched{err: fmt.Errorf("failed to start playwright driver: %w", err)}
			return
		}
		browser, err := pw.Chromium.Launch(d.launchOptions())
		if err != nil {
			_ = pw.Stop()
			result <- launched{err: fmt.Errorf("failed to launch browser instance: %w", err)}
			return
		}
		result <- launched{pw: pw, browser: browser}
	}()

	select {
	case l := <-result:
		if l.err != nil {
			return nil, l.err
		}
		d.logger.Info("Browser launched.", zap.String("browser_version", l.browser.Version()))
		return &Browser{pw: l.pw, browser: l.browser, cfg: d.cfg, logger: d.logger}, nil
	case <-ctx.Done():
		// Reap whatever the launch goroutine still produces.
		go func() {
			if l := <-result; l.err == nil {
				_ = l.browser.Close()
				_ = l.pw.Stop()
			}
		}()
		return nil, ctx.Err()
	}
}

func (d *Driver) ensureInstallation(ctx context.Context) error {
	d.logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		opts := &playwright.RunOptions{Browsers: []string{"chromium"}}
		if err := playwright.Install(opts); err != nil {
			errCh <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func (d *Driver) launchOptions() playwright.BrowserTypeLaunchOptions {
	timeout := d.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
		Args:     launchArgs(d.cfg),
		Timeout:  playwright.Float(float64(timeout.Milliseconds())),
	}
	if d.cfg.ExecPath != "" {
		opts.ExecutablePath = playwright.String(d.cfg.ExecPath)
	}
	return opts
}

// launchArgs prepends the container-friendly defaults to the user's args.
func launchArgs(cfg config.BrowserConfig) []string {
	args := []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}
	return append(args, cfg.Args...)
}

// Browser is a running Chromium instance and the Playwright driver behind it.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.Browser = (*Browser)(nil)

// NewPage opens a page in a fresh browser context.
func (b *Browser) NewPage(ctx context.Context) (schemas.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.BrowserNewPageOptions{
		IgnoreHttpsErrors: playwright.Bool(b.cfg.IgnoreTLSErrors),
	}
	if b.cfg.Viewport.Width > 0 && b.cfg.Viewport.Height > 0 {
		opts.Viewport = &playwright.Size{Width: b.cfg.Viewport.Width, Height: b.cfg.Viewport.Height}
	}
	pg, err := b.browser.NewPage(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return newPage(pg, b.logger), nil
}

// Close closes the browser and stops the driver. Playwright's calls take no
// context, so ctx only bounds how long Close waits for them.
func (b *Browser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() {
			var shutdownErr error
			if err := b.browser.Close(); err != nil {
				b.logger.Error("Failed to close browser instance.", zap.Error(err))
				shutdownErr = fmt.Errorf("failed to close browser: %w", err)
			}
			if err := b.pw.Stop(); err != nil {
				b.logger.Error("Failed to stop Playwright driver.", zap.Error(err))
				if shutdownErr == nil {
					shutdownErr = fmt.Errorf("failed to stop playwright driver: %w", err)
				}
			}
			done <- shutdownErr
		}()

		select {
		case b.closeErr = <-done:
		case <-ctx.Done():
			b.closeErr = fmt.Errorf("browser close interrupted: %w", ctx.Err())
		}
		b.logger.Info("Browser closed.")
	})
	return b.closeErr
}
