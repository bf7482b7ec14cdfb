package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ken0yuan/auto-ai-web/internal/browser"
	"github.com/ken0yuan/auto-ai-web/internal/dom"
)

// Controller executes actions against one page, resolving targets through
// the element index built by the dom package. It owns the current State and
// invalidates it whenever an action changes the page.
type Controller struct {
	log      *zap.Logger
	page     browser.Page
	builder  *dom.Builder
	registry *Registry
	timeout  time.Duration

	state *dom.State
}

// Options tunes controller behavior.
type Options struct {
	// Timeout bounds each individual browser call. Zero means 10s.
	Timeout time.Duration
}

// NewController creates a controller bound to a page.
func NewController(log *zap.Logger, page browser.Page, builder *dom.Builder, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Controller{
		log:      log.Named("action"),
		page:     page,
		builder:  builder,
		registry: NewRegistry(),
		timeout:  timeout,
	}
}

// SetContext rebinds the controller to a different page, a newly opened tab
// for example. The current state is discarded; indices from the previous
// page must not survive the switch.
func (c *Controller) SetContext(page browser.Page) {
	c.page = page
	c.state = nil
}

// Registry exposes the action registry, so callers can list or extend the
// available actions.
func (c *Controller) Registry() *Registry { return c.registry }

// State returns the most recent build, or nil before the first RebuildIndex.
func (c *Controller) State() *dom.State { return c.state }

// RebuildIndex re-extracts the page and replaces the current state. Every
// previously issued index becomes invalid.
func (c *Controller) RebuildIndex(ctx context.Context) (*dom.State, error) {
	st, err := c.builder.BuildFromPage(ctx, c.page)
	if err != nil {
		return nil, err
	}
	c.state = st
	return st, nil
}

// ResolveTarget turns a target into a browser locator, trying addressing
// modes in order of reliability: index, xpath, css selector, visible text.
// It never panics on a bad target; callers get ErrTargetNotFound.
func (c *Controller) ResolveTarget(ctx context.Context, target Target) (browser.Locator, error) {
	if target.IsZero() {
		return browser.Locator{}, fmt.Errorf("%w: empty target", ErrTargetNotFound)
	}

	if target.Index != nil {
		if c.state == nil {
			return browser.Locator{}, fmt.Errorf("%w: no element index built yet", ErrTargetNotFound)
		}
		liveEpoch, err := c.page.Epoch(ctx)
		if err != nil {
			return browser.Locator{}, fmt.Errorf("%w: cannot verify page state: %v", ErrTargetNotFound, err)
		}
		e, err := c.state.Index.Resolve(*target.Index, liveEpoch)
		if err != nil {
			if errors.Is(err, dom.ErrStaleIndex) {
				return browser.Locator{}, err
			}
			return browser.Locator{}, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
		}
		return browser.Locator{XPath: e.XPath}, nil
	}

	// Selector modes: prefer an indexed element's xpath when the index can
	// vouch for it, else pass the locator through for the browser to try.
	if target.XPath != "" {
		if c.state != nil {
			if e, ok := c.state.Index.ByXPath(target.XPath); ok {
				return browser.Locator{XPath: e.XPath}, nil
			}
		}
		return browser.Locator{XPath: target.XPath}, nil
	}
	if target.Selector != "" {
		return browser.Locator{Selector: target.Selector}, nil
	}

	if c.state != nil {
		if e, ok := c.state.Index.ByText(target.Text); ok {
			return browser.Locator{XPath: e.XPath}, nil
		}
	}
	// Text the index cannot vouch for goes to the browser, but a locator
	// matching nothing is reported as a miss here rather than as a click
	// failure later.
	loc := browser.Locator{Text: target.Text}
	if n, err := c.page.Count(ctx, loc); err == nil && n == 0 {
		return browser.Locator{}, fmt.Errorf("%w: no element matches text %q", ErrTargetNotFound, target.Text)
	}
	return loc, nil
}

// Execute validates and runs one action. The returned Result is always
// non-nil and suitable for history, even on failure.
func (c *Controller) Execute(ctx context.Context, spec Spec) *Result {
	res := &Result{Spec: spec}
	if err := c.registry.Validate(spec); err != nil {
		return fail(res, err)
	}

	beforeURL := c.page.URL()
	beforeEpoch := ""
	if c.state != nil {
		beforeEpoch = c.state.Epoch
	}

	err := c.dispatch(ctx, spec, res)
	if err != nil {
		fail(res, err)
	} else {
		res.Success = true
		if res.Message == "" {
			res.Message = spec.String() + " succeeded"
		}
	}

	res.PageChanged = c.pageChanged(ctx, beforeURL, beforeEpoch)
	if res.PageChanged {
		c.state = nil
	}

	c.log.Info("executed action",
		zap.String("action", spec.Name),
		zap.Bool("success", res.Success),
		zap.Bool("page_changed", res.PageChanged),
	)
	return res
}

// ExecuteCompact parses one compact directive string and executes it. A
// directive that fails to parse comes back as a failed Result rather than an
// error, so callers treat every directive uniformly.
func (c *Controller) ExecuteCompact(ctx context.Context, directive string) *Result {
	spec, err := ParseCompact(directive)
	if err != nil {
		return fail(&Result{Spec: spec}, err)
	}
	return c.Execute(ctx, spec)
}

// ExecuteSequence runs compact directives in order, stopping at the first
// failure. After any action that changed the page the element index is
// rebuilt, so later directives resolve against fresh indices.
func (c *Controller) ExecuteSequence(ctx context.Context, directives []string) ([]*Result, error) {
	results := make([]*Result, 0, len(directives))
	for _, d := range directives {
		res := c.ExecuteCompact(ctx, d)
		results = append(results, res)
		if !res.Success {
			return results, nil
		}
		if res.PageChanged {
			if _, err := c.RebuildIndex(ctx); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func fail(res *Result, err error) *Result {
	res.Success = false
	res.Err = err
	res.Message = err.Error()
	return res
}

// pageChanged compares URL and epoch against their pre-action values. A
// cleared epoch means the document was replaced even if the URL held still,
// an SPA route change for example.
func (c *Controller) pageChanged(ctx context.Context, beforeURL, beforeEpoch string) bool {
	if c.page.URL() != beforeURL {
		return true
	}
	if beforeEpoch == "" {
		return false
	}
	liveEpoch, err := c.page.Epoch(ctx)
	if err != nil {
		return true
	}
	return liveEpoch != beforeEpoch
}

func (c *Controller) dispatch(ctx context.Context, spec Spec, res *Result) error {
	switch spec.Name {
	case "click":
		return c.click(ctx, spec)
	case "input":
		return c.input(ctx, spec)
	case "select_option":
		return c.selectOption(ctx, spec)
	case "scroll":
		return c.scroll(ctx, spec)
	case "navigate":
		return c.navigate(ctx, spec)
	case "press":
		return c.press(ctx, spec)
	case "wait":
		return c.wait(ctx, spec)
	case "done":
		res.Message = spec.Value
		return nil
	}
	return fmt.Errorf("%w: unknown action %q", ErrValidation, spec.Name)
}

func (c *Controller) click(ctx context.Context, spec Spec) error {
	loc, err := c.ResolveTarget(ctx, spec.Target)
	if err != nil {
		return err
	}
	if err := c.page.Click(ctx, loc, c.timeout); err != nil {
		return fmt.Errorf("%w: click %s: %v", ErrExecution, loc, err)
	}
	return nil
}

func (c *Controller) input(ctx context.Context, spec Spec) error {
	loc, err := c.ResolveTarget(ctx, spec.Target)
	if err != nil {
		return err
	}
	if err := c.page.Fill(ctx, loc, spec.Value, c.timeout); err != nil {
		return fmt.Errorf("%w: fill %s: %v", ErrExecution, loc, err)
	}
	return nil
}

// selectOption handles both native selects and the div-soup comboboxes
// component libraries render: if the target is not a <select>, it clicks to
// open the widget, waits for a listbox, then clicks the matching option.
func (c *Controller) selectOption(ctx context.Context, spec Spec) error {
	loc, err := c.ResolveTarget(ctx, spec.Target)
	if err != nil {
		return err
	}

	if c.targetIsNativeSelect(spec.Target) {
		if err := c.page.SelectOption(ctx, loc, spec.Value, c.timeout); err != nil {
			return fmt.Errorf("%w: select %q on %s: %v", ErrExecution, spec.Value, loc, err)
		}
		return nil
	}

	if err := c.page.Click(ctx, loc, c.timeout); err != nil {
		return fmt.Errorf("%w: open dropdown %s: %v", ErrExecution, loc, err)
	}
	listbox := browser.Locator{Selector: `[role="listbox"], [role="menu"], .dropdown-menu`}
	if err := c.page.WaitVisible(ctx, listbox, c.timeout); err != nil {
		return fmt.Errorf("%w: dropdown options never appeared: %v", ErrExecution, err)
	}
	option := browser.Locator{Text: spec.Value}
	if err := c.page.Click(ctx, option, c.timeout); err != nil {
		return fmt.Errorf("%w: option %q not clickable: %v", ErrExecution, spec.Value, err)
	}
	return nil
}

func (c *Controller) targetIsNativeSelect(target Target) bool {
	if c.state == nil || target.Index == nil {
		return false
	}
	e, ok := c.state.Index.Get(*target.Index)
	return ok && e.Tag == "select"
}

func (c *Controller) scroll(ctx context.Context, spec Spec) error {
	var dy int
	switch strings.ToLower(strings.TrimSpace(spec.Value)) {
	case "", "down", "向下":
		dy = 600
	case "up", "向上":
		dy = -600
	default:
		n, err := strconv.Atoi(strings.TrimSpace(spec.Value))
		if err != nil {
			return fmt.Errorf("%w: scroll value %q is neither a direction nor pixels", ErrValidation, spec.Value)
		}
		dy = n
	}

	if !spec.Target.IsZero() {
		loc, err := c.ResolveTarget(ctx, spec.Target)
		if err != nil {
			return err
		}
		if err := c.page.ScrollIntoView(ctx, loc); err != nil {
			return fmt.Errorf("%w: scroll to %s: %v", ErrExecution, loc, err)
		}
		return nil
	}
	if err := c.page.ScrollBy(ctx, 0, dy); err != nil {
		return fmt.Errorf("%w: scroll: %v", ErrExecution, err)
	}
	return nil
}

func (c *Controller) navigate(ctx context.Context, spec Spec) error {
	url := spec.Value
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	if err := c.page.Navigate(ctx, url, c.timeout); err != nil {
		return fmt.Errorf("%w: navigate to %s: %v", ErrExecution, url, err)
	}
	return nil
}

func (c *Controller) press(ctx context.Context, spec Spec) error {
	if !spec.Target.IsZero() {
		loc, err := c.ResolveTarget(ctx, spec.Target)
		if err != nil {
			return err
		}
		if err := c.page.Click(ctx, loc, c.timeout); err != nil {
			return fmt.Errorf("%w: focus %s: %v", ErrExecution, loc, err)
		}
	}
	if err := c.page.Press(ctx, spec.Value); err != nil {
		return fmt.Errorf("%w: press %q: %v", ErrExecution, spec.Value, err)
	}
	return nil
}

func (c *Controller) wait(ctx context.Context, spec Spec) error {
	secs := 3.0
	if v := strings.TrimSpace(spec.Value); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: wait value %q is not seconds", ErrValidation, spec.Value)
		}
		secs = n
	}
	select {
	case <-time.After(time.Duration(secs * float64(time.Second))):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
