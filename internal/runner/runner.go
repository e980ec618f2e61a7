// Package runner executes verification scenarios: it launches a browser through a
// schemas.Driver, works through the scenario's steps in order, intercepts native
// dialogs, and captures a screenshot once every step has passed.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/scenario"
)

const captureTimeout = 30 * time.Second

// Runner executes scenarios one at a time against a driver.
type Runner struct {
	driver schemas.Driver
	opts   Options
	logger *zap.Logger
	now    func() time.Time
	// withTimeout derives every bounded wait (navigation, steps, capture).
	withTimeout func(context.Context, time.Duration) (context.Context, context.CancelFunc)
}

// New creates a Runner. A nil logger discards all output.
func New(driver schemas.Driver, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = scenario.DefaultArtifact
	}
	return &Runner{
		driver:      driver,
		opts:        opts,
		logger:      logger.Named("runner"),
		now:         time.Now,
		withTimeout: context.WithTimeout,
	}
}

// execution is the state of a single Run call.
type execution struct {
	*Runner
	sc          *schemas.Scenario
	report      *schemas.RunReport
	sm          *machine
	log         *zap.Logger
	interceptor *DialogInterceptor

	browser      schemas.Browser
	page         schemas.Page
	unregister   func()
	teardownOnce sync.Once
}

// Run executes sc and returns its report. The report is returned on failure too,
// together with one of NavigationError, LocateFailure, InteractionError,
// AssertionTimeout, or a wrapped launch, capture, or cancellation error.
// The browser session is torn down exactly once before Run returns.
func (r *Runner) Run(ctx context.Context, sc *schemas.Scenario) (*schemas.RunReport, error) {
	if sc == nil {
		return nil, errors.New("scenario is nil")
	}

	report := &schemas.RunReport{
		ID:        uuid.NewString(),
		Scenario:  sc.Name,
		Driver:    r.driver.Name(),
		StartedAt: r.now(),
		Steps:     make([]schemas.StepResult, len(sc.Steps)),
		Dialogs:   []schemas.DialogRecord{},
	}
	for i, step := range sc.Steps {
		report.Steps[i] = schemas.StepResult{Index: i, Name: step.Label(), Kind: step.Kind, Status: schemas.StepSkipped}
		if step.Target != nil {
			report.Steps[i].Locator = step.Target.String()
		}
	}

	log := r.logger.With(zap.String("scenario", sc.Name), zap.String("run_id", report.ID))
	x := &execution{
		Runner:      r,
		sc:          sc,
		report:      report,
		sm:          newMachine(report, r.now),
		log:         log,
		interceptor: NewDialogInterceptor(log.Named("dialogs")),
	}

	err := x.execute(ctx)
	x.teardown(ctx)
	x.finish(err)
	return report, err
}

func (x *execution) execute(ctx context.Context) error {
	// Teardown also runs from the caller; the deferred call only matters on panic.
	defer x.teardown(ctx)

	if err := scenario.Validate(x.sc); err != nil {
		return x.fail(err)
	}
	target, err := scenario.ResolveURL(x.opts.BaseURL, x.sc.Path)
	if err != nil {
		return x.fail(err)
	}
	x.report.TargetURL = target

	if err := x.sm.to(schemas.StateLaunching, -1); err != nil {
		return x.fail(err)
	}
	x.log.Info("Launching browser.", zap.String("driver", x.driver.Name()))
	browser, err := x.driver.Launch(ctx)
	if err != nil {
		return x.fail(fmt.Errorf("failed to launch browser: %w", err))
	}
	x.browser = browser

	page, err := browser.NewPage(ctx)
	if err != nil {
		return x.fail(fmt.Errorf("failed to open page: %w", err))
	}
	x.page = page
	// Registered before the first navigation so that no dialog is missed.
	x.unregister = page.OnDialog(x.interceptor.Handle)

	if err := x.sm.to(schemas.StateNavigating, -1); err != nil {
		return x.fail(err)
	}
	navTimeout := x.sc.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = x.opts.NavigationTimeout
	}
	if err := x.navigate(ctx, -1, "", target, navTimeout); err != nil {
		return x.fail(err)
	}

	for i, step := range x.sc.Steps {
		if ctx.Err() != nil {
			return x.fail(fmt.Errorf("run interrupted before step %d: %w", i+1, ctx.Err()))
		}
		if err := x.sm.to(schemas.StateRunning, i); err != nil {
			return x.fail(err)
		}

		res := &x.report.Steps[i]
		res.StartedAt = x.now()
		stepErr := x.runStep(ctx, i, step)
		res.DurationMs = x.now().Sub(res.StartedAt).Milliseconds()
		if stepErr != nil {
			res.Status = schemas.StepFailed
			res.Error = stepErr.Error()
			return x.fail(stepErr)
		}
		res.Status = schemas.StepPassed
	}

	if err := x.sm.to(schemas.StateCapturing, -1); err != nil {
		return x.fail(err)
	}
	if err := x.capture(ctx); err != nil {
		return x.fail(err)
	}
	return x.sm.to(schemas.StateDone, -1)
}

func (x *execution) fail(err error) error {
	if !x.sm.state().Terminal() {
		_ = x.sm.to(schemas.StateFailed, -1)
	}
	return err
}

func (x *execution) runStep(ctx context.Context, i int, step schemas.Step) error {
	log := x.log.With(zap.Int("index", i), zap.String("step", step.Label()))
	if step.Target != nil {
		log = log.With(zap.Stringer("locator", step.Target))
	}
	log.Debug("Running step.", zap.String("kind", string(step.Kind)))

	switch step.Kind {
	case schemas.StepNavigate:
		target, err := scenario.ResolveURL(x.opts.BaseURL, step.URL)
		if err != nil {
			return err
		}
		timeout := step.Timeout
		if timeout <= 0 {
			timeout = x.opts.NavigationTimeout
		}
		return x.navigate(ctx, i, step.Label(), target, timeout)
	case schemas.StepFill, schemas.StepClick:
		return x.act(ctx, i, step, log)
	case schemas.StepAssertVisible:
		return x.assertVisible(ctx, i, step, log)
	case schemas.StepPause:
		return x.pause(ctx, step.Duration)
	case schemas.StepLog:
		x.log.Info(step.Message, zap.Int("index", i))
		return nil
	}
	return fmt.Errorf("step %d: unsupported kind %q", i+1, step.Kind)
}

// navigate loads url within timeout. index is -1 and label empty for the entry page.
func (x *execution) navigate(ctx context.Context, index int, label, url string, timeout time.Duration) error {
	x.log.Info("Navigating to target.", zap.String("url", url), zap.Duration("timeout", timeout))

	navCtx, cancel := x.withTimeout(ctx, timeout)
	defer cancel()
	err := x.page.Navigate(navCtx, url)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("navigation interrupted: %w", ctx.Err())
	}
	return &NavigationError{Step: label, Index: index, URL: url, Timeout: timeout, Err: err}
}

// act performs a fill or click, retrying within actionRetryWindow while the
// target is missing or not actionable.
func (x *execution) act(ctx context.Context, i int, step schemas.Step, log *zap.Logger) error {
	el := x.page.Locate(*step.Target)
	actCtx, cancel := x.withTimeout(ctx, actionRetryWindow)
	defer cancel()

	var lastErr error
	attempts := 0
	op := func() error {
		attempts++
		var err error
		if step.Kind == schemas.StepFill {
			err = el.Fill(actCtx, step.Value)
		} else {
			err = el.Click(actCtx)
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, schemas.ErrElementNotFound), errors.Is(err, schemas.ErrNotActionable):
			lastErr = err
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(x.opts.PollInterval), actCtx))
	if err == nil {
		log.Debug("Step passed.", zap.Int("attempts", attempts))
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", step.Kind, ctx.Err())
	}

	cause := err
	if lastErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		cause = lastErr
	}
	if errors.Is(cause, schemas.ErrElementNotFound) {
		return &LocateFailure{Step: step.Label(), Index: i, Locator: *step.Target, Err: cause}
	}
	return &InteractionError{Step: step.Label(), Index: i, Action: step.Kind, Locator: *step.Target, Err: cause}
}

// assertVisible polls the target every PollInterval until it is visible or the
// step timeout elapses. A zero timeout checks exactly once.
func (x *execution) assertVisible(ctx context.Context, i int, step schemas.Step, log *zap.Logger) error {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = x.opts.DefaultAssertionTimeout
	}
	el := x.page.Locate(*step.Target)
	start := x.now()

	var (
		everFound bool
		probeErr  error
	)
	check := func(c context.Context) error {
		state, err := el.Probe(c)
		if err != nil {
			probeErr = err
			return err
		}
		if !state.Found() {
			return schemas.ErrElementNotFound
		}
		everFound = true
		if !state.Visible {
			return ErrNotVisible
		}
		return nil
	}

	var err error
	if timeout <= 0 {
		err = check(ctx)
	} else {
		waitCtx, cancel := x.withTimeout(ctx, timeout)
		defer cancel()
		err = backoff.Retry(func() error { return check(waitCtx) },
			backoff.WithContext(backoff.NewConstantBackOff(x.opts.PollInterval), waitCtx))
	}
	waited := x.now().Sub(start)
	if err == nil {
		log.Debug("Element is visible.", zap.Duration("waited", waited))
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("assertion interrupted: %w", ctx.Err())
	}

	var cause error = ErrNotVisible
	if !everFound {
		cause = schemas.ErrElementNotFound
		if probeErr != nil {
			cause = fmt.Errorf("%w (last probe error: %v)", schemas.ErrElementNotFound, probeErr)
		}
	}
	return &AssertionTimeout{
		Step:     step.Label(),
		Index:    i,
		Timeout:  timeout,
		Expected: step.Target.Describe(),
		Waited:   waited,
		Err:      cause,
	}
}

func (x *execution) pause(ctx context.Context, d time.Duration) error {
	pauseCtx, cancel := x.withTimeout(ctx, d)
	defer cancel()
	<-pauseCtx.Done()
	if ctx.Err() != nil {
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	}
	return nil
}

func (x *execution) capture(ctx context.Context) error {
	path := x.sc.Artifact
	if path == "" {
		path = x.opts.ArtifactPath
	}
	capCtx, cancel := x.withTimeout(ctx, captureTimeout)
	defer cancel()

	x.log.Info("Capturing screenshot...")
	if err := x.page.Screenshot(capCtx, path, x.sc.FullPage || x.opts.FullPage); err != nil {
		return fmt.Errorf("failed to capture artifact %s: %w", path, err)
	}
	x.report.Artifact = path
	x.log.Info("Screenshot saved.", zap.String("path", path))
	return nil
}

// teardown unregisters the dialog handler, then closes the page, then the
// browser. It runs once per execution regardless of how often it is called.
func (x *execution) teardown(ctx context.Context) {
	x.teardownOnce.Do(func() {
		if x.browser == nil {
			return
		}
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), x.opts.TeardownTimeout)
		defer cancel()

		if x.unregister != nil {
			x.unregister()
		}
		if x.page != nil {
			if err := x.page.Close(tctx); err != nil {
				x.log.Warn("Failed to close page.", zap.Error(err))
			}
		}
		if err := x.browser.Close(tctx); err != nil {
			x.log.Warn("Failed to close browser.", zap.Error(err))
		}
		x.log.Debug("Browser session torn down.")
	})
}

func (x *execution) finish(err error) {
	x.report.FinishedAt = x.now()
	x.report.DurationMs = x.report.FinishedAt.Sub(x.report.StartedAt).Milliseconds()
	x.report.Dialogs = x.interceptor.Records()

	if err != nil {
		x.report.Error = err.Error()
		x.log.Error("Scenario failed.", zap.String("state", string(x.report.State)), zap.Error(err))
		return
	}
	x.log.Info("Scenario passed.", zap.Int64("duration_ms", x.report.DurationMs), zap.String("artifact", x.report.Artifact))
}
