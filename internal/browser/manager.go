// Package browser owns the headless Chromium instance used to drive the
// posting surface. It launches (or reconnects to) Chrome via rod, applies
// anti-automation countermeasures, and persists cookies/storage between
// runs so the account does not have to log in every cycle.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hasan199191/crobot/internal/logging"
)

// Config holds browser configuration.
type Config struct {
	Bin            string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
	SessionFile    string
	ScreenshotDir  string
	UserAgent      string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		NavTimeout:     60 * time.Second,
	}
}

func (c Config) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

func (c Config) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

func (c Config) navTimeout() time.Duration {
	if c.NavTimeout == 0 {
		return 60 * time.Second
	}
	return c.NavTimeout
}

// launchFlags mirror the hardened flag set the worker has always run
// with: sandboxing off for containers, automation fingerprints off.
var launchFlags = []string{
	"no-sandbox",
	"disable-setuid-sandbox",
	"disable-dev-shm-usage",
	"disable-blink-features=AutomationControlled",
	"disable-features=site-per-process,TranslateUI",
	"disable-site-isolation-trials",
	"metrics-recording-only",
	"no-first-run",
	"no-service-autorun",
	"disable-extensions",
	"font-render-hinting=none",
}

// stealthJS hides the most common headless markers before any page
// script runs: the webdriver flag, empty plugin list, and the
// notifications permission probe.
const stealthJS = `
() => {
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined
	});

	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({state: Notification.permission}) :
			originalQuery(parameters)
	);

	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5].map(() => ({
			0: {type: "application/x-google-chrome-pdf"},
			description: "Portable Document Format",
			filename: "internal-pdf-viewer",
			length: 1,
			name: "Chrome PDF Plugin"
		}))
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ["en-US", "en"]
	});
}
`

// Manager owns the Chrome instance and its single tracked page.
type Manager struct {
	cfg Config

	mu         sync.Mutex
	browser    *rod.Browser
	page       *rod.Page
	controlURL string
}

// NewManager creates a manager; the browser is launched lazily on Start.
// When no user agent is configured, one is drawn from the pool so the
// page never runs with the headless default, which advertises itself.
func NewManager(cfg Config) *Manager {
	if cfg.UserAgent == "" {
		cfg.UserAgent = RandomUserAgent(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return &Manager{cfg: cfg}
}

// Start launches Chrome and prepares the tracked page. Safe to call
// repeatedly; a healthy running browser is reused, a stale one replaced.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.Browser("stale browser connection, relaunching")
		_ = m.browser.Close()
		m.browser = nil
		m.page = nil
	}

	launch := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.Bin != "" {
		launch = launch.Bin(m.cfg.Bin)
	}
	for _, rawFlag := range launchFlags {
		name, val, hasVal := strings.Cut(rawFlag, "=")
		if hasVal {
			launch = launch.Set(flags.Flag(name), val)
		} else {
			launch = launch.Set(flags.Flag(name))
		}
	}
	launch = launch.Set(flags.Flag("window-size"),
		fmt.Sprintf("%d,%d", m.cfg.viewportWidth(), m.cfg.viewportHeight()))

	controlURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	logging.Browser("chrome launched (headless=%v)", m.cfg.Headless)

	page, err := m.newPageLocked()
	if err != nil {
		_ = browser.Close()
		m.browser = nil
		return err
	}
	m.page = page

	// Restore a previous session if one is on disk; a corrupt file is
	// ignored and a fresh session is created on the next login.
	if err := m.loadSessionLocked(); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("session restore failed, starting fresh: %v", err)
	}
	return nil
}

func (m *Manager) newPageLocked() (*rod.Page, error) {
	page, err := m.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      m.cfg.UserAgent,
			AcceptLanguage: "en-US",
		}); err != nil {
			logging.Get(logging.CategoryBrowser).Warn("failed to set user agent: %v", err)
		}
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.viewportWidth(),
		Height:            m.cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("failed to set viewport: %v", err)
	}

	if _, err := page.EvalOnNewDocument(stealthJS); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("failed to install stealth script: %v", err)
	}
	return page, nil
}

// Page returns the tracked page.
func (m *Manager) Page() (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil {
		return nil, errors.New("browser not started")
	}
	return m.page, nil
}

// IsConnected returns whether the browser is up.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Navigate drives the tracked page to a URL and waits for load.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	page, err := m.Page()
	if err != nil {
		return err
	}
	p := page.Context(ctx).Timeout(m.cfg.navTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// URL returns the current page URL, or "" when unavailable.
func (m *Manager) URL() string {
	page, err := m.Page()
	if err != nil {
		return ""
	}
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// ElementAny tries each selector in order and returns the first match.
// The per-candidate timeout keeps a dead selector from eating the whole
// navigation budget.
func (m *Manager) ElementAny(ctx context.Context, timeout time.Duration, selectors ...string) (*rod.Element, string, error) {
	page, err := m.Page()
	if err != nil {
		return nil, "", err
	}
	var lastErr error
	for _, sel := range selectors {
		el, err := page.Context(ctx).Timeout(timeout).Element(sel)
		if err != nil {
			lastErr = err
			logging.BrowserDebug("selector %q not found: %v", sel, err)
			continue
		}
		logging.BrowserDebug("selector %q matched", sel)
		return el, sel, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no selectors given")
	}
	return nil, "", fmt.Errorf("no element matched %v: %w", selectors, lastErr)
}

// ClickAny clicks the first element matching one of the selectors.
func (m *Manager) ClickAny(ctx context.Context, timeout time.Duration, selectors ...string) (string, error) {
	el, sel, err := m.ElementAny(ctx, timeout, selectors...)
	if err != nil {
		return "", err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return sel, fmt.Errorf("click %q: %w", sel, err)
	}
	return sel, nil
}

// InputAny types text into the first element matching one of the selectors.
func (m *Manager) InputAny(ctx context.Context, timeout time.Duration, text string, selectors ...string) (string, error) {
	el, sel, err := m.ElementAny(ctx, timeout, selectors...)
	if err != nil {
		return "", err
	}
	if err := el.Input(text); err != nil {
		return sel, fmt.Errorf("input into %q: %w", sel, err)
	}
	return sel, nil
}

// HasText reports whether the current page body contains the given text.
func (m *Manager) HasText(ctx context.Context, text string) bool {
	page, err := m.Page()
	if err != nil {
		return false
	}
	html, err := page.Context(ctx).HTML()
	if err != nil {
		return false
	}
	return strings.Contains(html, text)
}

// Screenshot captures a full-page screenshot into the screenshot dir.
// Failures are logged, never fatal; screenshots are purely diagnostic.
func (m *Manager) Screenshot(ctx context.Context, name string) {
	if m.cfg.ScreenshotDir == "" {
		return
	}
	page, err := m.Page()
	if err != nil {
		return
	}
	data, err := page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		logging.BrowserDebug("screenshot %s failed: %v", name, err)
		return
	}
	if err := os.MkdirAll(m.cfg.ScreenshotDir, 0755); err != nil {
		return
	}
	path := filepath.Join(m.cfg.ScreenshotDir, name+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		logging.BrowserDebug("screenshot write %s failed: %v", path, err)
		return
	}
	logging.BrowserDebug("screenshot saved: %s", path)
}

// Close persists the session and shuts the browser down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		if err := m.saveSessionLocked(); err != nil {
			logging.Get(logging.CategoryBrowser).Warn("session save on close failed: %v", err)
		}
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
		m.page = nil
	}
	logging.Browser("browser closed")
	return err
}
