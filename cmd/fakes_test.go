// File: cmd/fakes_test.go
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
	"github.com/xkilldash9x/scenario-cli/internal/config"
)

// fakeDriver serves pages on which every element is found, and visible unless hidden.
type fakeDriver struct {
	hidden bool
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Launch(context.Context) (schemas.Browser, error) {
	return &fakeBrowser{hidden: d.hidden}, nil
}

type fakeBrowser struct{ hidden bool }

func (b *fakeBrowser) NewPage(context.Context) (schemas.Page, error) {
	return &fakePage{hidden: b.hidden}, nil
}
func (b *fakeBrowser) Close(context.Context) error { return nil }

type fakePage struct{ hidden bool }

func (p *fakePage) OnDialog(func(schemas.Dialog)) func() { return func() {} }
func (p *fakePage) Navigate(context.Context, string) error { return nil }
func (p *fakePage) Locate(loc schemas.Locator) schemas.Element {
	return &fakeElement{loc: loc, hidden: p.hidden}
}
func (p *fakePage) Close(context.Context) error { return nil }
func (p *fakePage) Screenshot(_ context.Context, path string, _ bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG fake"), 0o644)
}

type fakeElement struct {
	loc    schemas.Locator
	hidden bool
}

func (e *fakeElement) Locator() schemas.Locator { return e.loc }
func (e *fakeElement) Probe(context.Context) (schemas.ElementState, error) {
	return schemas.ElementState{Count: 1, Visible: !e.hidden, Enabled: true}, nil
}
func (e *fakeElement) Fill(context.Context, string) error { return nil }
func (e *fakeElement) Click(context.Context) error        { return nil }

// fakeStore records saved runs and serves a canned history.
type fakeStore struct {
	mu    sync.Mutex
	saved []*schemas.RunReport
	runs  []schemas.RunSummary
	args  []any
}

func (s *fakeStore) SaveRun(_ context.Context, report *schemas.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, report)
	return nil
}

func (s *fakeStore) ListRuns(_ context.Context, scenario string, limit int) ([]schemas.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.args = []any{scenario, limit}
	return s.runs, nil
}

type fakeStoreProvider struct {
	store    *fakeStore
	err      error
	cleanups int
}

func (p *fakeStoreProvider) Create(context.Context, *config.Config) (schemas.RunStore, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleanups++ }, nil
}
