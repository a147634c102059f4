package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
	"github.com/nao1215/reviewharvest/internal/rating"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "reviewharvest"

	// DefaultOutputPath is the JSONL file records are appended to.
	DefaultOutputPath = "reviews.jsonl"

	// DefaultConcurrency is the number of sessions running at once. Every
	// session is a browser tab, so this stays small.
	DefaultConcurrency = 3

	// DefaultMaxPerRating is the per-job cap of records for each rating.
	DefaultMaxPerRating = 100

	// DefaultMinBodyLength is the body length (in characters) at or below
	// which a review needs helpful votes to be kept.
	DefaultMinBodyLength = 10

	// DefaultNodeCap bounds how many review nodes are processed per bucket.
	DefaultNodeCap = 300

	// DefaultScrollAttempts and DefaultScrollDelay drive the reveal loop.
	DefaultScrollAttempts = 50
	DefaultScrollDelay    = 700 * time.Millisecond

	// DefaultTitleTimeout bounds the wait for the title landmark.
	DefaultTitleTimeout = 15 * time.Second
	// DefaultContainerTimeout bounds the wait for the list container
	// before stabilizing.
	DefaultContainerTimeout = 15 * time.Second
	// DefaultGateTimeout bounds the waits of gate handling.
	DefaultGateTimeout = 10 * time.Second

	// DefaultGateSettle is the pause after activating the gate control.
	DefaultGateSettle = 3 * time.Second
	// DefaultGateFallback is the pause when the gate could not be handled.
	DefaultGateFallback = 2 * time.Second
	// DefaultInitialSettle is the pause before the first reveal action.
	DefaultInitialSettle = 5 * time.Second
	// DefaultEnumerationSettle is the pause after collecting review nodes.
	DefaultEnumerationSettle = 2 * time.Second
	// DefaultBucketSettle is the pause after applying a rating filter.
	DefaultBucketSettle = 3 * time.Second

	// SummaryText, SummaryJSON and SummaryMarkdown are the summary formats.
	SummaryText     = "text"
	SummaryJSON     = "json"
	SummaryMarkdown = "markdown"
)

// Locators names the elements of the target listing. The defaults match
// the Google Play review dialog.
type Locators struct {
	// Title holds the human-readable name of the source.
	Title string `yaml:"title"`
	// Gate is the consent or "see all reviews" control. The last match is
	// activated.
	Gate string `yaml:"gate"`
	// Container is the scrollable list.
	Container string `yaml:"container"`
	// Item matches one review node.
	Item string `yaml:"item"`
	// Fields locates the values inside a review node.
	Fields model.FieldMap `yaml:"fields"`
	// FilterOpen opens the rating filter.
	FilterOpen string `yaml:"filter_open,omitempty"`
	// RatingOptions holds the filter option for ratings 1..5, in order.
	RatingOptions []string `yaml:"rating_options,omitempty"`
}

// DefaultLocators returns the locators of the Google Play review dialog.
func DefaultLocators() Locators {
	return Locators{
		Title:     "span.AfwdI",
		Gate:      "button.VfPpkd-LgbsSe.VfPpkd-LgbsSe-OWXEXe-dgl2Hf.ksBjEc.lKxP2d.LQeN7.aLey0c",
		Container: "div.fysCi.Vk3ZVd",
		Item:      "div.RHo1pe",
		Fields: model.FieldMap{
			Author:  "header.c1bOId > div.YNR7H > div.gSGphe > div.X5PpBb",
			Rating:  "header.c1bOId > div.Jx4nYe > div[role='img'][aria-label*='Rated']",
			Body:    "div.h3YV2d",
			Helpful: "div[jscontroller=\"SWD8cc\"]",
		},
	}
}

// Config holds all configuration options of a harvest run.
// It is built from NewConfig defaults, then the configuration file, then
// command line flags, and passed down explicitly; there is no global state.
type Config struct {
	// Sources is the ordered seed list. Duplicates are removed before
	// scheduling.
	Sources []string

	// OutputPath is the JSONL file accepted records are appended to.
	OutputPath string

	// Concurrency is the maximum number of sessions running at once.
	Concurrency int

	// MaxPerRating is the per-job cap of records for each rating bucket.
	MaxPerRating int

	// MinBodyLength is the body length at or below which a review is kept
	// only when it has more than HelpfulThreshold helpful votes.
	MinBodyLength int

	// HelpfulThreshold is the helpful-vote count a short review must exceed.
	HelpfulThreshold int

	// ByRating iterates the rating filter 1..5 instead of enumerating the
	// natural list order once.
	ByRating bool

	// DropUnrated rejects records whose rating cannot be read instead of
	// writing them with rating 0.
	DropUnrated bool

	// SkipSeen seeds every job with the fingerprints written by earlier
	// runs for the same source. It needs the run database.
	SkipSeen bool

	// Rounding turns fractional ratings into buckets: floor, round or ceil.
	Rounding string

	// NodeCap bounds the review nodes processed per bucket.
	NodeCap int

	// ScrollAttempts and ScrollDelay drive the stabilization loop.
	ScrollAttempts int
	ScrollDelay    time.Duration

	// NavigationTimeout bounds page navigation.
	NavigationTimeout time.Duration
	// TitleTimeout bounds the wait for the title landmark.
	TitleTimeout time.Duration
	// ContainerTimeout bounds the wait for the list container.
	ContainerTimeout time.Duration
	// GateTimeout bounds each wait of gate handling: for the control, then
	// for the list behind it.
	GateTimeout time.Duration

	// Settle delays. They give the listing time to react to an action.
	GateSettle        time.Duration
	GateFallback      time.Duration
	InitialSettle     time.Duration
	EnumerationSettle time.Duration
	BucketSettle      time.Duration

	// Locators names the elements of the listing.
	Locators Locators

	// Viewport and Headers are applied to every page.
	Viewport browser.Viewport
	Headers  map[string]string

	// RemoteBrowser is the DevTools URL of an already running browser.
	// When empty a local headless browser is launched.
	RemoteBrowser string

	// Headful shows the browser window.
	Headful bool

	// NoStealth disables the bot-detection hardening of new pages.
	NoStealth bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the configuration file. When empty, .reviewharvest
	// is searched in the current directory and then the home directory.
	ConfigFilePath string

	// Sites holds per-source overrides keyed by source URL.
	Sites map[string]SiteConfig

	// SummaryFormat selects how the run summary is printed.
	SummaryFormat string

	// DBDir is the directory of the run database.
	DBDir string

	// SaveToDB stores runs, jobs and fingerprints in the run database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	opts := browser.DefaultOptions()
	return &Config{
		OutputPath:        DefaultOutputPath,
		Concurrency:       DefaultConcurrency,
		MaxPerRating:      DefaultMaxPerRating,
		MinBodyLength:     DefaultMinBodyLength,
		HelpfulThreshold:  quota.DefaultHelpfulThreshold,
		Rounding:          rating.Floor.String(),
		NodeCap:           DefaultNodeCap,
		ScrollAttempts:    DefaultScrollAttempts,
		ScrollDelay:       DefaultScrollDelay,
		NavigationTimeout: browser.DefaultNavigationTimeout,
		TitleTimeout:      DefaultTitleTimeout,
		ContainerTimeout:  DefaultContainerTimeout,
		GateTimeout:       DefaultGateTimeout,
		GateSettle:        DefaultGateSettle,
		GateFallback:      DefaultGateFallback,
		InitialSettle:     DefaultInitialSettle,
		EnumerationSettle: DefaultEnumerationSettle,
		BucketSettle:      DefaultBucketSettle,
		Locators:          DefaultLocators(),
		Viewport:          opts.Viewport,
		Headers:           opts.Headers,
		Sites:             make(map[string]SiteConfig),
		SummaryFormat:     SummaryText,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory of the application.
// On Linux: ~/.local/share/reviewharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// BrowserOptions returns the session options for src, with the per-source
// headers merged over the global ones.
func (c *Config) BrowserOptions(src model.Source) browser.Options {
	headers := make(map[string]string, len(c.Headers))
	maps.Copy(headers, c.Headers)
	maps.Copy(headers, c.Site(src).Headers)

	return browser.Options{
		Viewport:          c.Viewport,
		Headers:           headers,
		NavigationTimeout: c.NavigationTimeout,
	}
}

// Site returns the overrides configured for src. Keys of the Sites map are
// normalized the same way sources are, so "HTTPS://Example.com/a" matches
// "https://example.com/a".
func (c *Config) Site(src model.Source) SiteConfig {
	if sc, ok := c.Sites[string(src)]; ok {
		return sc
	}
	for key, sc := range c.Sites {
		if norm, err := model.NormalizeSource(key); err == nil && norm == src {
			return sc
		}
	}
	return SiteConfig{}
}

// JobSettings returns the quota settings of src after applying its overrides.
func (c *Config) JobSettings(src model.Source) JobSettings {
	js := JobSettings{
		ByRating:     c.ByRating,
		MaxPerRating: c.MaxPerRating,
	}
	site := c.Site(src)
	if site.ByRating != nil {
		js.ByRating = *site.ByRating
	}
	if site.MaxPerRating > 0 {
		js.MaxPerRating = site.MaxPerRating
	}
	return js
}

// JobSettings are the per-source values a job runs with.
type JobSettings struct {
	ByRating     bool
	MaxPerRating int
}

// RoundingPolicy returns the parsed rounding policy.
func (c *Config) RoundingPolicy() (rating.Rounding, error) {
	r, err := rating.ParseRounding(c.Rounding)
	if err != nil {
		return rating.Floor, fmt.Errorf("%w: %q", ErrInvalidRounding, c.Rounding)
	}
	return r, nil
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSource
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxPerRating <= 0 {
		return ErrInvalidQuota
	}
	for key, site := range c.Sites {
		if site.MaxPerRating < 0 {
			return fmt.Errorf("%w: site %s", ErrInvalidQuota, key)
		}
	}
	if c.MinBodyLength < 0 {
		return ErrInvalidMinBodyLength
	}
	if c.NodeCap <= 0 {
		return ErrInvalidNodeCap
	}
	if c.ScrollAttempts <= 0 {
		return ErrInvalidScrollAttempts
	}
	if c.ScrollDelay < 0 {
		return ErrInvalidScrollDelay
	}
	for _, d := range []time.Duration{c.NavigationTimeout, c.TitleTimeout, c.ContainerTimeout, c.GateTimeout} {
		if d <= 0 {
			return ErrInvalidTimeout
		}
	}
	if _, err := c.RoundingPolicy(); err != nil {
		return err
	}
	switch c.SummaryFormat {
	case SummaryText, SummaryJSON, SummaryMarkdown:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSummaryFormat, c.SummaryFormat)
	}
	return c.validateLocators()
}

func (c *Config) validateLocators() error {
	required := map[string]string{
		"title":     c.Locators.Title,
		"container": c.Locators.Container,
		"item":      c.Locators.Item,
	}
	for _, f := range model.AllFields {
		required["fields."+string(f)] = c.Locators.Fields.Locator(f)
	}
	for _, name := range []string{"title", "container", "item", "fields.author", "fields.rating", "fields.body", "fields.helpful"} {
		if required[name] == "" {
			return fmt.Errorf("%w: %s", ErrMissingLocator, name)
		}
	}

	needsFilter := c.ByRating
	for _, site := range c.Sites {
		if site.ByRating != nil && *site.ByRating {
			needsFilter = true
		}
	}
	if !needsFilter {
		return nil
	}
	if c.Locators.FilterOpen == "" || len(c.Locators.RatingOptions) != model.MaxRating {
		return ErrMissingFilterLocator
	}
	for _, opt := range c.Locators.RatingOptions {
		if opt == "" {
			return ErrMissingFilterLocator
		}
	}
	return nil
}
