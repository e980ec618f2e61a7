package schemas

import (
	"context"
	"errors"
)

// -- Browser Driver Contract --

// Driver launches browser sessions. Implementations exist for chromedp and Playwright.
type Driver interface {
	// Name identifies the driver in logs and reports (e.g. "chromedp").
	Name() string
	// Launch starts a browser process and returns a handle to it.
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one running browser process (a Session).
type Browser interface {
	// NewPage opens a new document context owned by this browser.
	NewPage(ctx context.Context) (Page, error)
	// Close terminates the browser process. Calling it more than once is safe.
	Close(ctx context.Context) error
}

// Page is a single navigable document within a Browser.
type Page interface {
	// OnDialog registers a handler that is invoked for every native modal dialog.
	// The returned function unregisters the handler. Once unregistered, dialogs
	// are still dismissed by the driver but are no longer forwarded.
	OnDialog(handler func(Dialog)) (unregister func())
	// Navigate loads url and waits for the document load event.
	Navigate(ctx context.Context, url string) error
	// Locate returns a lazy handle for loc. It never fails by itself.
	Locate(loc Locator) Element
	// Screenshot captures the current page state to path, overwriting any existing file.
	Screenshot(ctx context.Context, path string, fullPage bool) error
	// Close releases the page. Calling it more than once is safe.
	Close(ctx context.Context) error
}

// Element is a lazily resolved reference to the elements matched by a Locator.
type Element interface {
	// Locator returns the locator this element was created from.
	Locator() Locator
	// Probe reports the current state of the first matching element without waiting.
	Probe(ctx context.Context) (ElementState, error)
	// Fill replaces the value of the matched input element with text.
	Fill(ctx context.Context, text string) error
	// Click dispatches a click on the matched element.
	Click(ctx context.Context) error
}

// ElementState is a point-in-time snapshot of a located element.
type ElementState struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// Found reports whether at least one element matched.
func (s ElementState) Found() bool { return s.Count > 0 }

// Dialog is a native modal dialog (alert, confirm, prompt, beforeunload).
type Dialog interface {
	Type() string
	Message() string
	Dismiss() error
}

// Sentinel errors returned by drivers from Element operations.
var (
	// ErrElementNotFound means the locator matched no element.
	ErrElementNotFound = errors.New("no element matches locator")
	// ErrNotActionable means the element exists but is hidden, disabled, obscured, or not editable.
	ErrNotActionable = errors.New("element is not actionable")
)
