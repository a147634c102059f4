// Package chrome implements the browser collaborator on top of a headless
// Chrome driven through the DevTools protocol with go-rod.
//
// One Browser (one Chrome process, or a remote instance) is shared by all
// jobs of a run; every job gets its own tab through Open.
package chrome

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/nao1215/reviewharvest/internal/browser"
)

// DefaultLang is the browser UI language passed to Chrome.
const DefaultLang = "en-US"

// Config configures the Chrome browser.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty launches a local Chrome.
	RemoteURL string

	// Headful shows the browser window instead of running headless.
	Headful bool

	// Stealth applies go-rod/stealth evasions to every page.
	Stealth bool

	// Lang is the browser UI language. Default: DefaultLang.
	Lang string

	// Options configures every page.
	Options browser.Options

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Lang == "" {
		c.Lang = DefaultLang
	}
	defaults := browser.DefaultOptions()
	if c.Options.Viewport.Width <= 0 || c.Options.Viewport.Height <= 0 {
		c.Options.Viewport = defaults.Viewport
	}
	if c.Options.NavigationTimeout <= 0 {
		c.Options.NavigationTimeout = defaults.NavigationTimeout
	}
	if c.Options.Headers == nil {
		c.Options.Headers = defaults.Headers
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser is a browser.Browser backed by Chrome.
type Browser struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

var _ browser.Browser = (*Browser)(nil)

// Launch starts a local Chrome, or connects to cfg.RemoteURL, and returns
// the connected Browser.
func Launch(cfg Config) (*Browser, error) {
	cfg.defaults()
	log := cfg.Logger

	b := &Browser{cfg: cfg}

	wsURL := cfg.RemoteURL
	if wsURL != "" {
		log.Info("chrome: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(!cfg.Headful).
			NoSandbox(true).
			Set("disable-setuid-sandbox").
			Set("lang", cfg.Lang).
			// Anti-detection flags.
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("chrome: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("chrome: launched local browser", "url", wsURL, "headful", cfg.Headful)
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("chrome: connect: %w", err)
	}
	b.browser = rb

	return b, nil
}

// Open creates a tab, applies the viewport and extra headers (override
// merged over the launch options), navigates to url and waits for the load
// event, all within the navigation timeout.
func (b *Browser) Open(ctx context.Context, url string, override browser.Options) (browser.Page, error) {
	b.mu.RLock()
	rb, closed := b.browser, b.closed
	b.mu.RUnlock()
	if closed || rb == nil {
		return nil, browser.ErrClosed
	}

	var (
		page *rod.Page
		err  error
	)
	if b.cfg.Stealth {
		page, err = stealth.Page(rb)
	} else {
		page, err = rb.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("chrome: create tab: %w", err)
	}

	opts := b.cfg.Options.With(override)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Viewport.Width,
		Height:            opts.Viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("chrome: set viewport: %w", err)
	}

	if pairs := opts.HeaderPairs(); len(pairs) > 0 {
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			_ = page.Close() //nolint:errcheck // Best effort cleanup
			return nil, fmt.Errorf("chrome: set headers: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		_ = page.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("chrome: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		_ = page.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("chrome: wait load %s: %w", url, err)
	}

	return &Page{page: page}, nil
}

// Close shuts the browser down. Closing twice is a no-op.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.cleanup()
}

func (b *Browser) cleanup() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}
