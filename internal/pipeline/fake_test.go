package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/model"
)

// fakeNode is a rendered review. Lookup answers from values keyed by
// locator.
type fakeNode struct {
	values     map[string]string
	lookupErr  error
	panicOn    bool
	releaseErr error
	releases   atomic.Int32
}

func (n *fakeNode) Lookup(_ context.Context, locator string, _ browser.ReadMode) (string, bool, error) {
	if n.panicOn {
		panic("detached node")
	}
	if n.lookupErr != nil {
		return "", false, n.lookupErr
	}
	v, ok := n.values[locator]
	return v, ok, nil
}

func (n *fakeNode) Release() error {
	n.releases.Add(1)
	return n.releaseErr
}

// review builds a node with every field present.
func review(author string, stars int, body string, helpful int) *fakeNode {
	f := config.DefaultLocators().Fields
	return &fakeNode{values: map[string]string{
		f.Author:  author,
		f.Rating:  fmt.Sprintf("Rated %d stars out of five stars", stars),
		f.Body:    body,
		f.Helpful: fmt.Sprintf("%d people found this review helpful", helpful),
	}}
}

// fakePage is a rendered listing.
type fakePage struct {
	mu sync.Mutex

	title    string
	titleErr error

	// waitErr and clickErr fail the given locators.
	waitErr  map[string]error
	clickErr map[string]error
	clicks   []string

	extents   []int
	scrolls   int
	scrollErr error

	// items is the unfiltered list; bucketItems is the list shown after
	// choosing a rating option, keyed by option locator.
	items       []*fakeNode
	bucketItems map[string][]*fakeNode
	current     []*fakeNode
	elementsErr error

	closes atomic.Int32
}

func (p *fakePage) Text(_ context.Context, _ string, _ time.Duration) (string, error) {
	if p.titleErr != nil {
		return "", p.titleErr
	}
	return p.title, nil
}

func (p *fakePage) WaitVisible(_ context.Context, locator string, _ time.Duration) error {
	return p.waitErr[locator]
}

func (p *fakePage) ClickLast(_ context.Context, locator string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clicks = append(p.clicks, locator)
	if err := p.clickErr[locator]; err != nil {
		return err
	}
	if items, ok := p.bucketItems[locator]; ok {
		p.current = items
	}
	return nil
}

func (p *fakePage) Elements(_ context.Context, _ string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.elementsErr != nil {
		return nil, p.elementsErr
	}
	src := p.items
	if p.bucketItems != nil {
		src = p.current
	}
	out := make([]browser.Element, len(src))
	for i, n := range src {
		out[i] = n
	}
	return out, nil
}

func (p *fakePage) ScrollToEnd(_ context.Context, _ string) (int, error) {
	if p.scrollErr != nil {
		return 0, p.scrollErr
	}
	if len(p.extents) == 0 {
		return 1000, nil
	}
	i := min(p.scrolls, len(p.extents)-1)
	p.scrolls++
	return p.extents[i], nil
}

func (p *fakePage) Visible(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (p *fakePage) Close() error {
	p.closes.Add(1)
	return nil
}

// fakeBrowser serves pages by URL.
type fakeBrowser struct {
	mu      sync.Mutex
	pages   map[string]*fakePage
	openErr map[string]error
	opened  []string
}

func (b *fakeBrowser) Open(_ context.Context, url string, _ browser.Options) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened = append(b.opened, url)
	if err := b.openErr[url]; err != nil {
		return nil, err
	}
	p, ok := b.pages[url]
	if !ok {
		return nil, errors.New("no such page")
	}
	return p, nil
}

func (b *fakeBrowser) Close() error { return nil }

// memSink collects records.
type memSink struct {
	mu   sync.Mutex
	err  error
	recs []model.Record
}

func (m *memSink) Write(_ context.Context, rec model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memSink) records() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Record(nil), m.recs...)
}

// noSleep returns immediately unless ctx is done.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// testConfig returns a valid configuration for the fake listing.
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Sources = []string{"https://play.example.com/app"}
	return cfg
}

func newTestHarvester(b browser.Browser, sk *memSink, cfg *config.Config, opts ...HarvesterOption) *Harvester {
	opts = append([]HarvesterOption{WithSleep(noSleep), WithJitter(0)}, opts...)
	h, err := NewHarvester(b, sk, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// releaseCounts returns how often each node was released.
func releaseCounts(nodes []*fakeNode) []int32 {
	out := make([]int32, len(nodes))
	for i, n := range nodes {
		out[i] = n.releases.Load()
	}
	return out
}

func ones(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
