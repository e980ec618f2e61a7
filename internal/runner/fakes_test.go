package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// recorder keeps an ordered log of every driver call made during a run.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.list() {
		if e == event {
			n++
		}
	}
	return n
}

// elementSpec describes how a fake element behaves. Elements not present in
// fakePage.elements match nothing.
type elementSpec struct {
	// visibleAfter delays visibility relative to page creation.
	visibleAfter  time.Duration
	hidden        bool
	notActionable bool
	// actionableAfter makes fill/click fail with ErrNotActionable until this many attempts were made.
	actionableAfter int
	probeErr        error
	actErr          error
	attempts        int
}

type fakeDriver struct {
	rec       *recorder
	page      *fakePage
	launchErr error
	pageErr   error
}

func newFakeDriver(elements map[string]*elementSpec) *fakeDriver {
	rec := &recorder{}
	return &fakeDriver{
		rec:  rec,
		page: &fakePage{rec: rec, elements: elements, created: time.Now()},
	}
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Launch(ctx context.Context) (schemas.Browser, error) {
	d.rec.add("launch")
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	return &fakeBrowser{driver: d}, nil
}

type fakeBrowser struct {
	driver *fakeDriver
}

func (b *fakeBrowser) NewPage(ctx context.Context) (schemas.Page, error) {
	b.driver.rec.add("page.new")
	if b.driver.pageErr != nil {
		return nil, b.driver.pageErr
	}
	b.driver.page.created = time.Now()
	return b.driver.page, nil
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	b.driver.rec.add("browser.close")
	return nil
}

type fakePage struct {
	rec      *recorder
	elements map[string]*elementSpec
	created  time.Time

	mu      sync.Mutex
	handler func(schemas.Dialog)

	// navDelay blocks Navigate until it elapses or the context ends.
	navDelay time.Duration
	navErr   error
	// navErrURL limits navErr to one URL; empty fails every navigation.
	navErrURL string
	// onNavigate runs after a successful navigation, e.g. to raise dialogs.
	onNavigate func(p *fakePage)
	shotErr    error
}

func (p *fakePage) OnDialog(handler func(schemas.Dialog)) func() {
	p.rec.add("dialog.register")
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
	return func() {
		p.rec.add("dialog.unregister")
		p.mu.Lock()
		p.handler = nil
		p.mu.Unlock()
	}
}

// raise delivers a dialog the way a driver does: forwarded while a handler is
// registered, dismissed silently otherwise.
func (p *fakePage) raise(d *fakeDialog) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		_ = d.Dismiss()
		return
	}
	h(d)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.rec.add("navigate %s", url)
	if p.navDelay > 0 {
		select {
		case <-time.After(p.navDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.navErr != nil && (p.navErrURL == "" || p.navErrURL == url) {
		return p.navErr
	}
	if p.onNavigate != nil {
		p.onNavigate(p)
	}
	return nil
}

func (p *fakePage) Locate(loc schemas.Locator) schemas.Element {
	return &fakeElement{page: p, loc: loc}
}

func (p *fakePage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	p.rec.add("screenshot %s full=%t", path, fullPage)
	return p.shotErr
}

func (p *fakePage) Close(ctx context.Context) error {
	p.rec.add("page.close")
	return nil
}

type fakeElement struct {
	page *fakePage
	loc  schemas.Locator
}

func (e *fakeElement) Locator() schemas.Locator { return e.loc }

func (e *fakeElement) spec() *elementSpec {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.elements[e.loc.String()]
}

func (e *fakeElement) Probe(ctx context.Context) (schemas.ElementState, error) {
	s := e.spec()
	if s == nil {
		e.page.rec.add("probe %s count=0", e.loc)
		return schemas.ElementState{}, nil
	}
	if s.probeErr != nil {
		return schemas.ElementState{}, s.probeErr
	}
	visible := !s.hidden && time.Since(e.page.created) >= s.visibleAfter
	e.page.rec.add("probe %s visible=%t", e.loc, visible)
	return schemas.ElementState{Count: 1, Visible: visible, Enabled: true}, nil
}

func (e *fakeElement) act(kind string) error {
	s := e.spec()
	if s == nil {
		e.page.rec.add("%s %s missing", kind, e.loc)
		return fmt.Errorf("%s: %w", e.loc, schemas.ErrElementNotFound)
	}
	e.page.mu.Lock()
	s.attempts++
	attempts := s.attempts
	e.page.mu.Unlock()
	if s.actErr != nil {
		return s.actErr
	}
	if s.notActionable || attempts <= s.actionableAfter {
		e.page.rec.add("%s %s not-actionable", kind, e.loc)
		return fmt.Errorf("%s: %w", e.loc, schemas.ErrNotActionable)
	}
	e.page.rec.add("%s %s", kind, e.loc)
	return nil
}

func (e *fakeElement) Fill(ctx context.Context, text string) error { return e.act("fill") }
func (e *fakeElement) Click(ctx context.Context) error             { return e.act("click") }

type fakeDialog struct {
	typ, message string

	mu        sync.Mutex
	dismissed int
}

func (d *fakeDialog) Type() string    { return d.typ }
func (d *fakeDialog) Message() string { return d.message }
func (d *fakeDialog) Dismiss() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismissed++
	return nil
}

func (d *fakeDialog) dismissCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dismissed
}
