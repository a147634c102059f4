package browser

import (
	"maps"
	"sort"
	"time"
)

// Default session settings.
const (
	// DefaultViewportWidth and DefaultViewportHeight emulate a desktop
	// screen so listings render their desktop layout.
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	// DefaultAcceptLanguage pins the listing language so the rating labels
	// use a recognised phrasing.
	DefaultAcceptLanguage = "en-US,en;q=0.9"

	// DefaultNavigationTimeout bounds page navigation and load.
	DefaultNavigationTimeout = 60 * time.Second
)

// Viewport is the emulated screen size.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Options configures every page a Browser opens.
type Options struct {
	Viewport Viewport
	// Headers are sent with every request of the page.
	Headers map[string]string
	// NavigationTimeout bounds Open.
	NavigationTimeout time.Duration
}

// DefaultOptions returns the desktop, English-language session settings.
func DefaultOptions() Options {
	return Options{
		Viewport: Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
		Headers: map[string]string{
			"Accept-Language": DefaultAcceptLanguage,
		},
		NavigationTimeout: DefaultNavigationTimeout,
	}
}

// HeaderPairs flattens Headers into name/value pairs in a stable order.
func (o Options) HeaderPairs() []string {
	names := make([]string, 0, len(o.Headers))
	for k := range o.Headers {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names)*2)
	for _, k := range names {
		pairs = append(pairs, k, o.Headers[k])
	}
	return pairs
}

// With returns o overridden by the non-zero fields of override. Headers are
// merged, with override winning on equal names.
func (o Options) With(override Options) Options {
	out := o
	if override.Viewport.Width > 0 && override.Viewport.Height > 0 {
		out.Viewport = override.Viewport
	}
	if override.NavigationTimeout > 0 {
		out.NavigationTimeout = override.NavigationTimeout
	}
	out.Headers = make(map[string]string, len(o.Headers)+len(override.Headers))
	maps.Copy(out.Headers, o.Headers)
	maps.Copy(out.Headers, override.Headers)
	return out
}
