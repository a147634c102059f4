package config

import "time"

// SiteConfig holds overrides for a single source.
type SiteConfig struct {
	// ByRating overrides the global rating iteration toggle when set.
	ByRating *bool `yaml:"by_rating,omitempty"`

	// MaxPerRating overrides the global per-rating cap when positive.
	MaxPerRating int `yaml:"max_per_rating,omitempty"`

	// Headers are extra request headers merged over the global ones.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// HarvestSection is the "harvest:" block of the configuration file.
// Zero values mean "keep the default".
type HarvestSection struct {
	Output            string         `yaml:"output,omitempty"`
	Concurrency       int            `yaml:"concurrency,omitempty"`
	MaxPerRating      int            `yaml:"max_per_rating,omitempty"`
	MinBodyLength     *int           `yaml:"min_body_length,omitempty"`
	HelpfulThreshold  *int           `yaml:"helpful_threshold,omitempty"`
	ByRating          *bool          `yaml:"by_rating,omitempty"`
	DropUnrated       *bool          `yaml:"drop_unrated,omitempty"`
	SkipSeen          *bool          `yaml:"skip_seen,omitempty"`
	Rounding          string         `yaml:"rounding,omitempty"`
	NodeCap           int            `yaml:"node_cap,omitempty"`
	ScrollAttempts    int            `yaml:"scroll_attempts,omitempty"`
	ScrollDelay       *time.Duration `yaml:"scroll_delay,omitempty"`
	NavigationTimeout *time.Duration `yaml:"navigation_timeout,omitempty"`
	TitleTimeout      *time.Duration `yaml:"title_timeout,omitempty"`
	ContainerTimeout  *time.Duration `yaml:"container_timeout,omitempty"`
	GateTimeout       *time.Duration `yaml:"gate_timeout,omitempty"`
	GateSettle        *time.Duration `yaml:"gate_settle,omitempty"`
	GateFallback      *time.Duration `yaml:"gate_fallback,omitempty"`
	InitialSettle     *time.Duration `yaml:"initial_settle,omitempty"`
	EnumerationSettle *time.Duration `yaml:"enumeration_settle,omitempty"`
	BucketSettle      *time.Duration `yaml:"bucket_settle,omitempty"`
}

// BrowserSection is the "browser:" block of the configuration file.
type BrowserSection struct {
	Remote  string            `yaml:"remote,omitempty"`
	Headful *bool             `yaml:"headful,omitempty"`
	Stealth *bool             `yaml:"stealth,omitempty"`
	Width   int               `yaml:"width,omitempty"`
	Height  int               `yaml:"height,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .reviewharvest configuration file.
type File struct {
	// Sources is the seed list.
	Sources []string `yaml:"sources,omitempty"`

	Harvest HarvestSection `yaml:"harvest,omitempty"`

	// Locators replaces individual default locators; empty entries keep
	// the default.
	Locators Locators `yaml:"locators,omitempty"`

	Browser BrowserSection `yaml:"browser,omitempty"`

	// Sites maps source URLs to their overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// Apply merges the file over c. Command line flags are applied afterwards
// by the caller.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}

	c.Sources = append(c.Sources, f.Sources...)
	c.applyHarvest(f.Harvest)
	c.applyLocators(f.Locators)

	b := f.Browser
	if b.Remote != "" {
		c.RemoteBrowser = b.Remote
	}
	if b.Headful != nil {
		c.Headful = *b.Headful
	}
	if b.Stealth != nil {
		c.NoStealth = !*b.Stealth
	}
	if b.Width > 0 {
		c.Viewport.Width = b.Width
	}
	if b.Height > 0 {
		c.Viewport.Height = b.Height
	}
	for k, v := range b.Headers {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[k] = v
	}

	for k, v := range f.Sites {
		if c.Sites == nil {
			c.Sites = make(map[string]SiteConfig)
		}
		c.Sites[k] = v
	}
}

func (c *Config) applyHarvest(h HarvestSection) {
	setString(&c.OutputPath, h.Output)
	setString(&c.Rounding, h.Rounding)
	setInt(&c.Concurrency, h.Concurrency)
	setInt(&c.MaxPerRating, h.MaxPerRating)
	setInt(&c.NodeCap, h.NodeCap)
	setInt(&c.ScrollAttempts, h.ScrollAttempts)
	if h.MinBodyLength != nil {
		c.MinBodyLength = *h.MinBodyLength
	}
	if h.HelpfulThreshold != nil {
		c.HelpfulThreshold = *h.HelpfulThreshold
	}
	if h.ByRating != nil {
		c.ByRating = *h.ByRating
	}
	if h.DropUnrated != nil {
		c.DropUnrated = *h.DropUnrated
	}
	if h.SkipSeen != nil {
		c.SkipSeen = *h.SkipSeen
	}
	setDuration(&c.ScrollDelay, h.ScrollDelay)
	setDuration(&c.NavigationTimeout, h.NavigationTimeout)
	setDuration(&c.TitleTimeout, h.TitleTimeout)
	setDuration(&c.ContainerTimeout, h.ContainerTimeout)
	setDuration(&c.GateTimeout, h.GateTimeout)
	setDuration(&c.GateSettle, h.GateSettle)
	setDuration(&c.GateFallback, h.GateFallback)
	setDuration(&c.InitialSettle, h.InitialSettle)
	setDuration(&c.EnumerationSettle, h.EnumerationSettle)
	setDuration(&c.BucketSettle, h.BucketSettle)
}

func (c *Config) applyLocators(l Locators) {
	setString(&c.Locators.Title, l.Title)
	setString(&c.Locators.Gate, l.Gate)
	setString(&c.Locators.Container, l.Container)
	setString(&c.Locators.Item, l.Item)
	setString(&c.Locators.Fields.Author, l.Fields.Author)
	setString(&c.Locators.Fields.Rating, l.Fields.Rating)
	setString(&c.Locators.Fields.Body, l.Fields.Body)
	setString(&c.Locators.Fields.Helpful, l.Fields.Helpful)
	setString(&c.Locators.FilterOpen, l.FilterOpen)
	if len(l.RatingOptions) > 0 {
		c.Locators.RatingOptions = append([]string(nil), l.RatingOptions...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
