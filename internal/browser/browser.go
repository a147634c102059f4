package browser

import (
	"context"
	"errors"
	"time"
)

// Rendering errors.
var (
	// ErrNotFound is returned when a locator matches no element.
	ErrNotFound = errors.New("element not found")
	// ErrClosed is returned when a page or browser is used after Close.
	ErrClosed = errors.New("browser session closed")
)

// ReadMode selects how an element's value is read.
type ReadMode int

const (
	// ReadText reads the rendered text, falling back to the raw text content.
	ReadText ReadMode = iota
	// ReadLabel reads the accessible label (aria-label).
	ReadLabel
)

// Browser opens interactive sessions. Implementations must be safe for
// concurrent use: several jobs open pages at the same time.
type Browser interface {
	// Open navigates a new page to url and waits for it to load. Non-zero
	// fields of opts override the browser's own page options.
	Open(ctx context.Context, url string, opts Options) (Page, error)
	// Close releases the browser.
	Close() error
}

// Page is one interactive session. A Page is used by a single job.
type Page interface {
	// Text waits up to timeout for locator and returns its rendered text.
	Text(ctx context.Context, locator string, timeout time.Duration) (string, error)
	// WaitVisible waits up to timeout for locator to be visible.
	WaitVisible(ctx context.Context, locator string, timeout time.Duration) error
	// ClickLast activates the last element matching locator.
	// It returns ErrNotFound when nothing matches.
	ClickLast(ctx context.Context, locator string) error
	// Elements returns handles to every element matching locator, in
	// rendered order. The caller must Release each handle exactly once.
	Elements(ctx context.Context, locator string) ([]Element, error)
	// ScrollToEnd reads the scroll extent of the container matching
	// locator and scrolls it to that extent. It returns ErrNotFound when
	// the container is missing.
	ScrollToEnd(ctx context.Context, locator string) (int, error)
	// Visible reports whether the element matching locator is rendered.
	Visible(ctx context.Context, locator string) (bool, error)
	// Close ends the session.
	Close() error
}

// Element is a handle to one rendered element. Handles are owned by the
// rendering layer and must be released exactly once.
type Element interface {
	// Lookup finds the first descendant matching locator and reads it.
	// found is false when nothing matches; err is reserved for faults.
	Lookup(ctx context.Context, locator string, mode ReadMode) (value string, found bool, err error)
	// Release disposes the handle.
	Release() error
}
