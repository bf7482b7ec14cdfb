package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const defaultActionTimeout = 30 * time.Second

var (
	pwOnce     sync.Once
	pwInstance *playwright.Playwright
	pwErr      error
)

// getPlaywright returns the singleton Playwright instance, installing the
// browser binaries on first use.
func getPlaywright() (*playwright.Playwright, error) {
	pwOnce.Do(func() {
		if err := playwright.Install(); err != nil {
			pwErr = fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		pw, err := playwright.Run()
		if err != nil {
			pwErr = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		pwInstance = pw
	})
	return pwInstance, pwErr
}

// LaunchOptions configures a Playwright browser session.
type LaunchOptions struct {
	Headless bool
}

// PlaywrightSession owns a Chromium browser and its context.
type PlaywrightSession struct {
	mu      sync.Mutex
	log     *zap.Logger
	browser playwright.Browser
	bctx    playwright.BrowserContext
	closed  bool
}

// NewPlaywrightSession launches Chromium and creates one browsing context
// with no fixed viewport, matching the window the user would see.
func NewPlaywrightSession(log *zap.Logger, opts LaunchOptions) (*PlaywrightSession, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pw, err := getPlaywright()
	if err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--start-maximized"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		NoViewport: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &PlaywrightSession{
		log:     log.Named("browser"),
		browser: browser,
		bctx:    bctx,
	}, nil
}

// NewPage opens a new tab in the session's context.
func (s *PlaywrightSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("session is closed")
	}
	pwPage, err := s.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &playwrightPage{log: s.log, session: s, page: pwPage}, nil
}

// Close shuts down the context and the browser.
func (s *PlaywrightSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.bctx != nil {
		_ = s.bctx.Close()
	}
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

// playwrightPage adapts a Playwright page to the Page interface. Locators are
// resolved fresh on every call; nothing is cached between calls.
type playwrightPage struct {
	log     *zap.Logger
	session *PlaywrightSession
	page    playwright.Page
}

func (p *playwrightPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultActionTimeout
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	title, err := p.page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (p *playwrightPage) Evaluate(ctx context.Context, script string, arg any) (json.RawMessage, error) {
	var result any
	var err error
	if arg != nil {
		result, err = p.page.Evaluate(script, arg)
	} else {
		result, err = p.page.Evaluate(script)
	}
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluate result: %w", err)
	}
	return data, nil
}

func (p *playwrightPage) Epoch(ctx context.Context) (string, error) {
	raw, err := p.Evaluate(ctx, EpochScript, nil)
	if err != nil {
		return "", err
	}
	var epoch string
	if err := json.Unmarshal(raw, &epoch); err != nil {
		return "", fmt.Errorf("unexpected epoch result: %w", err)
	}
	return epoch, nil
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (p *playwrightPage) Click(ctx context.Context, loc Locator, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultActionTimeout
	}
	locator := p.page.Locator(loc.String()).First()
	if err := locator.ScrollIntoViewIfNeeded(); err != nil {
		p.log.Debug("scroll into view before click failed", zap.Error(err))
	}
	err := locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Fill(ctx context.Context, loc Locator, value string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultActionTimeout
	}
	locator := p.page.Locator(loc.String()).First()
	err := locator.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) SelectOption(ctx context.Context, loc Locator, label string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultActionTimeout
	}
	locator := p.page.Locator(loc.String()).First()
	_, err := locator.SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{label},
	}, playwright.LocatorSelectOptionOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Press(ctx context.Context, key string) error {
	if err := p.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("press failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := p.page.Evaluate(fmt.Sprintf("window.scrollBy(%d, %d)", dx, dy))
	if err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) ScrollIntoView(ctx context.Context, loc Locator) error {
	locator := p.page.Locator(loc.String()).First()
	if err := locator.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("scroll into view failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultActionTimeout
	}
	locator := p.page.Locator(loc.String()).First()
	err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Count(ctx context.Context, loc Locator) (int, error) {
	count, err := p.page.Locator(loc.String()).Count()
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

func (p *playwrightPage) Metrics(ctx context.Context) (PageMetrics, error) {
	raw, err := p.Evaluate(ctx, MetricsScript, nil)
	if err != nil {
		return PageMetrics{}, err
	}
	var m PageMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return PageMetrics{}, fmt.Errorf("unexpected metrics result: %w", err)
	}
	return m, nil
}

func (p *playwrightPage) Tabs(ctx context.Context) ([]TabInfo, error) {
	pages := p.page.Context().Pages()
	tabs := make([]TabInfo, 0, len(pages))
	for i, pg := range pages {
		title, _ := pg.Title()
		tabs = append(tabs, TabInfo{PageID: i + 1, URL: pg.URL(), Title: title})
	}
	return tabs, nil
}
