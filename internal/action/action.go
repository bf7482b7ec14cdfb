// Package action parses, validates and executes browser actions against the
// current page, resolving model-supplied targets through the element index.
package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ken0yuan/auto-ai-web/internal/browser"
)

var (
	// ErrTargetNotFound means no resolution strategy located the target.
	ErrTargetNotFound = errors.New("target element not found")

	// ErrValidation means the action request is malformed: unknown name or
	// missing required parameters. Nothing touched the page.
	ErrValidation = errors.New("invalid action")

	// ErrExecution means the browser rejected an otherwise well-formed
	// action, a click on a detached element for example.
	ErrExecution = errors.New("action execution failed")
)

// Spec is one parsed action request: what to do, to which element, with
// which payload. Target and Value are optional depending on the action.
type Spec struct {
	Name   string
	Target Target
	Value  string
}

// Target identifies an element by exactly one of several addressing modes,
// tried in order of reliability: highlight index, xpath, css selector,
// visible text.
type Target struct {
	Index    *int
	XPath    string
	Selector string
	Text     string
}

// IsZero reports whether no addressing mode is set.
func (t Target) IsZero() bool {
	return t.Index == nil && t.XPath == "" && t.Selector == "" && t.Text == ""
}

func (t Target) String() string {
	switch {
	case t.Index != nil:
		return fmt.Sprintf("index %d", *t.Index)
	case t.XPath != "":
		return "xpath " + t.XPath
	case t.Selector != "":
		return "selector " + t.Selector
	case t.Text != "":
		return fmt.Sprintf("text %q", t.Text)
	}
	return "<none>"
}

func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if !s.Target.IsZero() {
		fmt.Fprintf(&b, " on %s", s.Target)
	}
	if s.Value != "" {
		fmt.Fprintf(&b, " with %q", s.Value)
	}
	return b.String()
}

// Result is the outcome of one executed action, recorded into agent history
// whether or not it succeeded.
type Result struct {
	Spec    Spec
	Success bool
	Message string
	Err     error

	// PageChanged reports that the URL or page epoch differs from before
	// the action, so the element index must be rebuilt before reuse.
	PageChanged bool
}

// Locator converts the target's selector-style modes to a browser locator.
// Index mode has no locator; it resolves through the element index instead.
func (t Target) Locator() browser.Locator {
	return browser.Locator{XPath: t.XPath, Selector: t.Selector, Text: t.Text}
}
