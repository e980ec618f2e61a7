package runner

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/scenario"
)

// timeScale shrinks every bounded wait so that scenarios declaring 20s or 60s
// timeouts run in milliseconds. Errors still report the declared timeout.
const timeScale = 100

func testOptions() Options {
	return Options{
		BaseURL:      "http://app.test",
		ArtifactPath: "verification/verification.png",
		PollInterval: 2 * time.Millisecond,
	}
}

func newTestRunner(t *testing.T, d schemas.Driver, logger *zap.Logger) *Runner {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	r := New(d, testOptions(), logger)
	r.withTimeout = func(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, d/timeScale)
	}
	return r
}

func animationElements() map[string]*elementSpec {
	return map[string]*elementSpec{
		`placeholder="Search for a location..."`:                 {},
		`role=button[name="Search"]`:                             {},
		`text="Events in California"`:                            {},
		`css=[data-radix-accordion-item] >> first >> role=button`: {},
		`role=button[name="View True Color"]`:                    {},
		`role=heading[name="Generating Animation"]`:              {},
		`tag=video`:                                              {},
	}
}

func builtin(t *testing.T, name string) *schemas.Scenario {
	t.Helper()
	sc, err := scenario.Builtin(name)
	require.NoError(t, err)
	return sc
}

type transition struct {
	State schemas.RunState
	Index int
}

func transitionsOf(r *schemas.RunReport) []transition {
	out := make([]transition, 0, len(r.Transitions))
	for _, tr := range r.Transitions {
		out = append(out, transition{tr.State, tr.StepIndex})
	}
	return out
}

func statusesOf(r *schemas.RunReport) []schemas.StepStatus {
	out := make([]schemas.StepStatus, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, s.Status)
	}
	return out
}

func TestRunMapsRenderSucceeds(t *testing.T) {
	d := newFakeDriver(map[string]*elementSpec{
		`css=.leaflet-container`:                {},
		`css=path.leaflet-interactive >> first`: {},
	})
	r := newTestRunner(t, d, nil)

	report, err := r.Run(context.Background(), builtin(t, scenario.MapsRender))
	require.NoError(t, err)

	assert.True(t, report.Succeeded())
	assert.Equal(t, "fake", report.Driver)
	assert.Equal(t, "http://app.test/maps", report.TargetURL)
	assert.Equal(t, "verification/verification.png", report.Artifact)
	assert.Empty(t, report.Error)
	assert.NotEmpty(t, report.ID)

	want := []transition{
		{schemas.StateIdle, -1},
		{schemas.StateLaunching, -1},
		{schemas.StateNavigating, -1},
		{schemas.StateRunning, 0},
		{schemas.StateRunning, 1},
		{schemas.StateRunning, 2},
		{schemas.StateCapturing, -1},
		{schemas.StateDone, -1},
	}
	if diff := cmp.Diff(want, transitionsOf(report)); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []schemas.StepStatus{schemas.StepPassed, schemas.StepPassed, schemas.StepPassed}, statusesOf(report))
	assert.Contains(t, d.rec.list(), "navigate http://app.test/maps")
}

func TestRunTeardownOrder(t *testing.T) {
	d := newFakeDriver(animationElements())
	_, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))
	require.NoError(t, err)

	events := d.rec.list()
	require.GreaterOrEqual(t, len(events), 4)
	want := []string{"dialog.unregister", "page.close", "browser.close"}
	if diff := cmp.Diff(want, events[len(events)-3:]); diff != "" {
		t.Errorf("teardown order mismatch (-want +got):\n%s", diff)
	}
	// The handler is registered before the first navigation.
	assert.Less(t, slices.Index(events, "dialog.register"), slices.Index(events, "navigate http://app.test/maps"))
}

func TestRunTeardownExactlyOnce(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(d *fakeDriver)
		wantErr       bool
		browserCloses int
		pageCloses    int
	}{
		{name: "success", setup: func(d *fakeDriver) {}, browserCloses: 1, pageCloses: 1},
		{name: "step failure", setup: func(d *fakeDriver) { delete(d.page.elements, `tag=video`) }, wantErr: true, browserCloses: 1, pageCloses: 1},
		{name: "navigation failure", setup: func(d *fakeDriver) { d.page.navErr = errors.New("net::ERR_CONNECTION_REFUSED") }, wantErr: true, browserCloses: 1, pageCloses: 1},
		{name: "capture failure", setup: func(d *fakeDriver) { d.page.shotErr = errors.New("disk full") }, wantErr: true, browserCloses: 1, pageCloses: 1},
		{name: "page failure", setup: func(d *fakeDriver) { d.pageErr = errors.New("target crashed") }, wantErr: true, browserCloses: 1, pageCloses: 0},
		{name: "launch failure", setup: func(d *fakeDriver) { d.launchErr = errors.New("chrome not found") }, wantErr: true, browserCloses: 0, pageCloses: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver(animationElements())
			tt.setup(d)

			report, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, schemas.StateFailed, report.State)
				assert.Equal(t, err.Error(), report.Error)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.browserCloses, d.rec.count("browser.close"))
			assert.Equal(t, tt.pageCloses, d.rec.count("page.close"))
			assert.LessOrEqual(t, d.rec.count("dialog.unregister"), 1)
		})
	}
}

func TestRunFailureSkipsRemainingSteps(t *testing.T) {
	a, b, c, dd, e := schemas.ByCSS("#a"), schemas.ByCSS("#b"), schemas.ByCSS("#c"), schemas.ByCSS("#d"), schemas.ByCSS("#e")
	sc := &schemas.Scenario{
		Name: "five-steps",
		Path: "/",
		Steps: []schemas.Step{
			{Name: "fill a", Kind: schemas.StepFill, Target: &a, Value: "x"},
			{Name: "click b", Kind: schemas.StepClick, Target: &b},
			{Name: "see c", Kind: schemas.StepAssertVisible, Target: &c},
			{Name: "click d", Kind: schemas.StepClick, Target: &dd},
			{Name: "fill e", Kind: schemas.StepFill, Target: &e, Value: "y"},
		},
	}
	d := newFakeDriver(map[string]*elementSpec{
		"css=#a": {}, "css=#b": {}, "css=#d": {}, "css=#e": {},
	})

	report, err := newTestRunner(t, d, nil).Run(context.Background(), sc)

	var timeout *AssertionTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 2, timeout.Index)
	assert.Equal(t, "see c", timeout.Step)
	assert.ErrorIs(t, err, schemas.ErrElementNotFound)

	assert.Equal(t, []schemas.StepStatus{
		schemas.StepPassed, schemas.StepPassed, schemas.StepFailed, schemas.StepSkipped, schemas.StepSkipped,
	}, statusesOf(report))
	assert.Contains(t, report.Steps[2].Error, "AssertionTimeout(0")
	assert.Empty(t, report.Artifact)

	for _, ev := range d.rec.list() {
		assert.NotContains(t, ev, "#d")
		assert.NotContains(t, ev, "#e")
		assert.False(t, strings.HasPrefix(ev, "screenshot"), "no artifact may be written after a failure")
	}
	assert.Equal(t, transition{schemas.StateFailed, -1}, transitionsOf(report)[len(report.Transitions)-1])
}

func TestAssertionTimeoutIsBounded(t *testing.T) {
	target := schemas.ByText("never")
	sc := &schemas.Scenario{
		Name:  "bounded",
		Path:  "/",
		Steps: []schemas.Step{{Kind: schemas.StepAssertVisible, Target: &target, Timeout: 150 * time.Millisecond}},
	}
	d := newFakeDriver(nil)
	// Real timeouts here, no scaling.
	r := New(d, testOptions(), zaptest.NewLogger(t))

	start := time.Now()
	_, err := r.Run(context.Background(), sc)
	elapsed := time.Since(start)

	var timeout *AssertionTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 150*time.Millisecond, timeout.Timeout)
	assert.GreaterOrEqual(t, timeout.Waited, 150*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond+750*time.Millisecond)
	assert.Greater(t, d.rec.count(`probe text="never" count=0`), 1, "a bounded assertion polls")
}

func TestZeroTimeoutChecksOnce(t *testing.T) {
	target := schemas.ByText("later")
	sc := &schemas.Scenario{
		Name:  "single-check",
		Path:  "/",
		Steps: []schemas.Step{{Kind: schemas.StepAssertVisible, Target: &target}},
	}
	d := newFakeDriver(nil)
	_, err := newTestRunner(t, d, nil).Run(context.Background(), sc)

	var timeout *AssertionTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Zero(t, timeout.Timeout)
	assert.Equal(t, 1, d.rec.count(`probe text="later" count=0`))
}

func TestCaliforniaSearch(t *testing.T) {
	const key = `text="Events in California"`

	t.Run("passes when results appear within the bound", func(t *testing.T) {
		elements := animationElements()
		elements[key] = &elementSpec{visibleAfter: 50 * time.Millisecond}
		d := newFakeDriver(elements)

		report, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))
		require.NoError(t, err)
		assert.Equal(t, schemas.StepPassed, report.Steps[4].Status)
	})

	t.Run("fails when results never appear", func(t *testing.T) {
		elements := animationElements()
		delete(elements, key)
		d := newFakeDriver(elements)

		report, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))

		var timeout *AssertionTimeout
		require.ErrorAs(t, err, &timeout)
		assert.True(t, strings.HasPrefix(err.Error(), `AssertionTimeout(20000, "Events in California")`), err.Error())
		assert.Equal(t, 4, timeout.Index)
		assert.Equal(t, "Wait for search results", timeout.Step)
		assert.ErrorIs(t, err, schemas.ErrElementNotFound)
		assert.Equal(t, schemas.StepFailed, report.Steps[4].Status)
		assert.Equal(t, 0, d.rec.count(`click css=[data-radix-accordion-item] >> first >> role=button`))
	})

	t.Run("fails when results stay hidden", func(t *testing.T) {
		elements := animationElements()
		elements[key] = &elementSpec{hidden: true}
		d := newFakeDriver(elements)

		_, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), `AssertionTimeout(20000, "Events in California")`))
		assert.ErrorIs(t, err, ErrNotVisible)
	})
}

func TestVideoAssertionPrecedesCapture(t *testing.T) {
	t.Run("capture waits for the video", func(t *testing.T) {
		elements := animationElements()
		elements[`tag=video`] = &elementSpec{visibleAfter: 100 * time.Millisecond}
		d := newFakeDriver(elements)

		report, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))
		require.NoError(t, err)

		events := d.rec.list()
		videoSeen := slices.Index(events, "probe tag=video visible=true")
		shot := slices.Index(events, "screenshot verification/verification.png full=false")
		require.NotEqual(t, -1, videoSeen)
		require.NotEqual(t, -1, shot)
		assert.Less(t, videoSeen, shot)
		assert.Equal(t, 1, d.rec.count("screenshot verification/verification.png full=false"))
		assert.Equal(t, "verification/verification.png", report.Artifact)
	})

	t.Run("no capture without the video", func(t *testing.T) {
		elements := animationElements()
		elements[`tag=video`] = &elementSpec{hidden: true}
		d := newFakeDriver(elements)

		report, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), `AssertionTimeout(60000, "video")`), err.Error())
		assert.Empty(t, report.Artifact)
		for _, ev := range d.rec.list() {
			assert.False(t, strings.HasPrefix(ev, "screenshot"))
		}
	})
}

func TestDialogsAreDismissedAndRecorded(t *testing.T) {
	alert := &fakeDialog{typ: "alert", message: "Quota exceeded"}
	confirm := &fakeDialog{typ: "confirm", message: "Leave page?"}
	late := &fakeDialog{typ: "alert", message: "after teardown"}

	d := newFakeDriver(animationElements())
	d.page.onNavigate = func(p *fakePage) {
		p.raise(alert)
		p.raise(confirm)
	}
	core, logs := observer.New(zap.InfoLevel)
	r := newTestRunner(t, d, zap.New(core))

	report, err := r.Run(context.Background(), builtin(t, scenario.MapsAnimation))
	require.NoError(t, err)

	// Dialogs raised after the handler is unregistered are still dismissed, but not recorded.
	d.page.raise(late)

	assert.Equal(t, 1, alert.dismissCount())
	assert.Equal(t, 1, confirm.dismissCount())
	assert.Equal(t, 1, late.dismissCount())

	require.Len(t, report.Dialogs, 2)
	assert.Equal(t, "alert", report.Dialogs[0].Type)
	assert.Equal(t, "Quota exceeded", report.Dialogs[0].Message)
	assert.Equal(t, "confirm", report.Dialogs[1].Type)

	intercepted := logs.FilterMessage("Intercepted dialog").All()
	require.Len(t, intercepted, 2)
	assert.Equal(t, "Leave page?", intercepted[1].ContextMap()["message"])
}

func TestActionRetries(t *testing.T) {
	target := schemas.ByRole("button", "Go")
	sc := func(kind schemas.StepKind) *schemas.Scenario {
		step := schemas.Step{Name: "press go", Kind: kind, Target: &target}
		if kind == schemas.StepFill {
			step.Value = "text"
		}
		return &schemas.Scenario{Name: "retry", Path: "/", Steps: []schemas.Step{step}}
	}
	const key = `role=button[name="Go"]`

	t.Run("becomes actionable", func(t *testing.T) {
		spec := &elementSpec{actionableAfter: 2}
		d := newFakeDriver(map[string]*elementSpec{key: spec})
		_, err := newTestRunner(t, d, nil).Run(context.Background(), sc(schemas.StepClick))
		require.NoError(t, err)
		assert.Equal(t, 3, spec.attempts)
	})

	t.Run("never actionable", func(t *testing.T) {
		d := newFakeDriver(map[string]*elementSpec{key: {notActionable: true}})
		_, err := newTestRunner(t, d, nil).Run(context.Background(), sc(schemas.StepClick))

		var interaction *InteractionError
		require.ErrorAs(t, err, &interaction)
		assert.Equal(t, schemas.StepClick, interaction.Action)
		assert.Equal(t, "press go", interaction.Step)
		assert.ErrorIs(t, err, schemas.ErrNotActionable)
	})

	t.Run("never present", func(t *testing.T) {
		d := newFakeDriver(nil)
		_, err := newTestRunner(t, d, nil).Run(context.Background(), sc(schemas.StepFill))

		var locate *LocateFailure
		require.ErrorAs(t, err, &locate)
		assert.Equal(t, target, locate.Locator)
		assert.ErrorIs(t, err, schemas.ErrElementNotFound)
		assert.Greater(t, d.rec.count(`fill role=button[name="Go"] missing`), 1)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		spec := &elementSpec{actErr: errors.New("input is read-only")}
		d := newFakeDriver(map[string]*elementSpec{key: spec})
		_, err := newTestRunner(t, d, nil).Run(context.Background(), sc(schemas.StepFill))

		var interaction *InteractionError
		require.ErrorAs(t, err, &interaction)
		assert.Contains(t, err.Error(), "read-only")
		assert.Equal(t, 1, spec.attempts)
	})
}

func TestNavigationError(t *testing.T) {
	d := newFakeDriver(animationElements())
	d.page.navDelay = 5 * time.Second

	start := time.Now()
	report, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsAnimation))

	var nav *NavigationError
	require.ErrorAs(t, err, &nav)
	assert.Equal(t, "http://app.test/maps", nav.URL)
	assert.Equal(t, 30*time.Second, nav.Timeout)
	assert.Equal(t, -1, nav.Index)
	assert.Empty(t, nav.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, transition{schemas.StateFailed, -1}, transitionsOf(report)[len(report.Transitions)-1])
	for _, s := range report.Steps {
		assert.Equal(t, schemas.StepSkipped, s.Status)
	}
}

func TestNavigateStepErrorNamesStep(t *testing.T) {
	d := newFakeDriver(nil)
	d.page.navErr = errors.New("net::ERR_CONNECTION_REFUSED")
	d.page.navErrURL = "http://app.test/events"

	sc := &schemas.Scenario{
		Name: "events",
		Path: "/maps",
		Steps: []schemas.Step{
			{Kind: schemas.StepLog, Message: "Leaving the map..."},
			{Name: "Open the events page", Kind: schemas.StepNavigate, URL: "/events", Timeout: 10 * time.Second},
			{Kind: schemas.StepLog, Message: "never printed"},
		},
	}
	report, err := newTestRunner(t, d, nil).Run(context.Background(), sc)

	var nav *NavigationError
	require.ErrorAs(t, err, &nav)
	assert.Equal(t, 1, nav.Index)
	assert.Equal(t, "Open the events page", nav.Step)
	assert.Equal(t, 10*time.Second, nav.Timeout)
	assert.Equal(t, `"Open the events page" failed: page http://app.test/events did not load within 10s`, Diagnose(err))
	assert.Equal(t, []schemas.StepStatus{schemas.StepPassed, schemas.StepFailed, schemas.StepSkipped}, statusesOf(report))
}

func TestScenarioNavigationTimeoutOverride(t *testing.T) {
	d := newFakeDriver(nil)
	d.page.navDelay = 5 * time.Second

	_, err := newTestRunner(t, d, nil).Run(context.Background(), builtin(t, scenario.MapsRender))
	var nav *NavigationError
	require.ErrorAs(t, err, &nav)
	assert.Equal(t, 60*time.Second, nav.Timeout)
}

func TestInterruptedRunStillTearsDown(t *testing.T) {
	d := newFakeDriver(animationElements())
	d.page.navDelay = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	defer cancel()

	report, err := newTestRunner(t, d, nil).Run(ctx, builtin(t, scenario.MapsAnimation))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var nav *NavigationError
	assert.False(t, errors.As(err, &nav), "an interrupt is not a navigation failure")
	assert.Equal(t, schemas.StateFailed, report.State)
	assert.Equal(t, 1, d.rec.count("browser.close"))
	assert.Equal(t, 1, d.rec.count("page.close"))
}

func TestInvalidScenarioNeverLaunches(t *testing.T) {
	d := newFakeDriver(nil)
	report, err := newTestRunner(t, d, nil).Run(context.Background(), &schemas.Scenario{Name: "empty", Path: "/"})

	var verr *scenario.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, d.rec.list())
	assert.Equal(t, []transition{{schemas.StateIdle, -1}, {schemas.StateFailed, -1}}, transitionsOf(report))

	_, err = newTestRunner(t, d, nil).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestScenarioArtifactOverride(t *testing.T) {
	d := newFakeDriver(map[string]*elementSpec{"css=main": {}})
	main := schemas.ByCSS("main")
	sc := &schemas.Scenario{
		Name:     "custom",
		Path:     "/home",
		Artifact: "out/custom.png",
		FullPage: true,
		Steps: []schemas.Step{
			{Kind: schemas.StepLog, Message: "Checking the landing page..."},
			{Kind: schemas.StepNavigate, URL: "/about"},
			{Kind: schemas.StepAssertVisible, Target: &main, Timeout: time.Second},
		},
	}

	report, err := newTestRunner(t, d, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, "out/custom.png", report.Artifact)
	assert.Contains(t, d.rec.list(), "screenshot out/custom.png full=true")
	assert.Contains(t, d.rec.list(), "navigate http://app.test/about")
}
