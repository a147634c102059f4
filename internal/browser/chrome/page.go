package chrome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/nao1215/reviewharvest/internal/browser"
)

// Scripts evaluated in the page. Each receives the locator as its argument.
const (
	// clickLastJS clicks the last match, which is the most recently
	// rendered control when a dialog stacks several of them.
	clickLastJS = `(sel) => {
		const els = document.querySelectorAll(sel);
		if (els.length === 0) return false;
		const el = els[els.length - 1];
		if (!(el instanceof HTMLElement)) return false;
		el.click();
		return true;
	}`

	// scrollToEndJS returns -1 when the container is missing.
	scrollToEndJS = `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return -1;
		const h = el.scrollHeight;
		el.scrollTop = h;
		return h;
	}`

	visibleJS = `(sel) => {
		const el = document.querySelector(sel);
		return !!el && el.offsetParent !== null;
	}`

	readTextJS = `() => this.innerText || this.textContent || ''`
)

// Page is a browser.Page backed by a Chrome tab.
type Page struct {
	page *rod.Page
}

var _ browser.Page = (*Page)(nil)

// Text waits for locator and returns its trimmed rendered text.
func (p *Page) Text(ctx context.Context, locator string, timeout time.Duration) (string, error) {
	el, cancel, err := p.waitElement(ctx, locator, timeout)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer el.Release() //nolint:errcheck // Handle is discarded either way

	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("chrome: read text of %q: %w", locator, err)
	}
	return strings.TrimSpace(text), nil
}

// WaitVisible waits for locator to exist and become visible.
func (p *Page) WaitVisible(ctx context.Context, locator string, timeout time.Duration) error {
	el, cancel, err := p.waitElement(ctx, locator, timeout)
	if err != nil {
		return err
	}
	defer cancel()
	defer el.Release() //nolint:errcheck // Handle is discarded either way

	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("chrome: wait visible %q: %w", locator, err)
	}
	return nil
}

// waitElement waits up to timeout for locator. The element stays bound to
// the timeout context until the returned cancel func is called.
func (p *Page) waitElement(ctx context.Context, locator string, timeout time.Duration) (*rod.Element, context.CancelFunc, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)

	el, err := p.page.Context(tctx).Element(locator)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: %q within %s", browser.ErrNotFound, locator, timeout)
		}
		return nil, nil, fmt.Errorf("chrome: find %q: %w", locator, err)
	}
	return el, cancel, nil
}

// ClickLast clicks the last element matching locator.
func (p *Page) ClickLast(ctx context.Context, locator string) error {
	res, err := p.page.Context(ctx).Eval(clickLastJS, locator)
	if err != nil {
		return fmt.Errorf("chrome: click %q: %w", locator, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%w: %q", browser.ErrNotFound, locator)
	}
	return nil
}

// Elements returns handles for every match of locator in document order.
func (p *Page) Elements(ctx context.Context, locator string) ([]browser.Element, error) {
	els, err := p.page.Context(ctx).Elements(locator)
	if err != nil {
		return nil, fmt.Errorf("chrome: enumerate %q: %w", locator, err)
	}
	handles := make([]browser.Element, len(els))
	for i, el := range els {
		handles[i] = &Element{el: el}
	}
	return handles, nil
}

// ScrollToEnd scrolls the container to its current scroll height and
// returns that height.
func (p *Page) ScrollToEnd(ctx context.Context, locator string) (int, error) {
	res, err := p.page.Context(ctx).Eval(scrollToEndJS, locator)
	if err != nil {
		return 0, fmt.Errorf("chrome: scroll %q: %w", locator, err)
	}
	extent := res.Value.Int()
	if extent < 0 {
		return 0, fmt.Errorf("%w: %q", browser.ErrNotFound, locator)
	}
	return extent, nil
}

// Visible reports whether locator matches a rendered element.
func (p *Page) Visible(ctx context.Context, locator string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(visibleJS, locator)
	if err != nil {
		return false, fmt.Errorf("chrome: visibility of %q: %w", locator, err)
	}
	return res.Value.Bool(), nil
}

// Close closes the tab.
func (p *Page) Close() error {
	if p.page == nil {
		return browser.ErrClosed
	}
	err := p.page.Close()
	p.page = nil
	return err
}

// Element is a browser.Element backed by a remote DOM object.
type Element struct {
	el *rod.Element
}

var _ browser.Element = (*Element)(nil)

// Lookup reads the first descendant matching locator.
func (e *Element) Lookup(ctx context.Context, locator string, mode browser.ReadMode) (string, bool, error) {
	subs, err := e.el.Context(ctx).Elements(locator)
	if err != nil {
		return "", false, fmt.Errorf("chrome: lookup %q: %w", locator, err)
	}
	defer func() {
		for _, s := range subs {
			_ = s.Release() //nolint:errcheck // Sub-handles are discarded either way
		}
	}()
	if len(subs) == 0 {
		return "", false, nil
	}

	sub := subs[0]
	switch mode {
	case browser.ReadLabel:
		label, err := sub.Attribute("aria-label")
		if err != nil {
			return "", true, fmt.Errorf("chrome: read label of %q: %w", locator, err)
		}
		if label == nil {
			return "", true, nil
		}
		return *label, true, nil
	default:
		res, err := sub.Eval(readTextJS)
		if err != nil {
			return "", true, fmt.Errorf("chrome: read text of %q: %w", locator, err)
		}
		return res.Value.Str(), true, nil
	}
}

// Release disposes the remote object.
func (e *Element) Release() error {
	return e.el.Release()
}
