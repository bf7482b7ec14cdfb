// Package browser defines the boundary to the underlying browser-driving
// library. The rest of the system talks to a Page, never to the driver
// directly, so unit tests can substitute a fake and the Playwright
// implementation stays swappable.
package browser

import (
	"context"
	"encoding/json"
	"time"
)

// Locator addresses an element on the live page. Exactly one field should be
// set; resolution priority (index → xpath → selector → text) is decided by
// the action controller, not here.
type Locator struct {
	XPath    string `json:"xpath,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
}

// IsZero reports whether the locator addresses nothing.
func (l Locator) IsZero() bool {
	return l.XPath == "" && l.Selector == "" && l.Text == ""
}

// String returns the locator in the driver's selector syntax.
func (l Locator) String() string {
	switch {
	case l.XPath != "":
		return "xpath=" + l.XPath
	case l.Selector != "":
		return l.Selector
	case l.Text != "":
		return "text=" + l.Text
	}
	return ""
}

// TabInfo describes one open tab in the browsing context.
type TabInfo struct {
	PageID int    `json:"page_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// PageMetrics captures viewport and scroll geometry for scroll-affordance
// hints in the serialized page state.
type PageMetrics struct {
	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`
	PageWidth      int `json:"page_width"`
	PageHeight     int `json:"page_height"`
	ScrollX        int `json:"scroll_x"`
	ScrollY        int `json:"scroll_y"`
}

// PixelsAbove returns how much content sits above the viewport.
func (m PageMetrics) PixelsAbove() int {
	return m.ScrollY
}

// PixelsBelow returns how much content sits below the viewport.
func (m PageMetrics) PixelsBelow() int {
	below := m.PageHeight - (m.ScrollY + m.ViewportHeight)
	if below < 0 {
		return 0
	}
	return below
}

// Page is the capability surface the tree builder and action controller need
// from one live page. Implementations must re-resolve locators on every call
// rather than caching element handles, because time passes between indexing
// and execution.
type Page interface {
	// Navigate loads a URL and waits for DOMContentLoaded.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// URL returns the current page URL without touching the network.
	URL() string

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript function in the page and returns its
	// JSON-encoded result. arg is passed as the function's argument.
	Evaluate(ctx context.Context, script string, arg any) (json.RawMessage, error)

	// Epoch returns the page-global build marker stamped by the last DOM
	// extraction, or "" if the document has been replaced since.
	Epoch(ctx context.Context) (string, error)

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Click dispatches a pointer click on the first element the locator
	// resolves to, scrolling it into view first.
	Click(ctx context.Context, loc Locator, timeout time.Duration) error

	// Fill focuses the element, clears it and types the value.
	Fill(ctx context.Context, loc Locator, value string, timeout time.Duration) error

	// SelectOption picks an option in a native <select> by visible label.
	SelectOption(ctx context.Context, loc Locator, label string, timeout time.Duration) error

	// Press sends a keyboard key (Enter, Tab, Escape, ...) to the page.
	Press(ctx context.Context, key string) error

	// ScrollBy scrolls the viewport by the given deltas.
	ScrollBy(ctx context.Context, dx, dy int) error

	// ScrollIntoView brings the element into the viewport.
	ScrollIntoView(ctx context.Context, loc Locator) error

	// WaitVisible blocks until the locator resolves to a visible element.
	WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error

	// Count returns how many elements the locator currently matches.
	Count(ctx context.Context, loc Locator) (int, error)

	// Metrics reads the page's viewport/scroll geometry.
	Metrics(ctx context.Context) (PageMetrics, error)

	// Tabs lists the open tabs in this page's browsing context.
	Tabs(ctx context.Context) ([]TabInfo, error)
}

// Session owns a browser connection and creates pages.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
