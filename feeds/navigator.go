package feeds

import (
	"context"
	"sync"
	"time"

	"feedreader/models"

	log "github.com/sirupsen/logrus"
)

const DefaultFetchTimeout = 30 * time.Second

// Fetcher retrieves the parsed entries of a feed
type Fetcher interface {
	FetchEntries(ctx context.Context, url string) ([]models.Entry, error)
}

// Renderer draws the current feed and the favorites list
type Renderer interface {
	RenderFeed(feed models.Feed)
	// RenderFavorites receives the whole collection; use FavoritesOf for the view
	RenderFavorites(feeds []models.Feed)
}

// Revealer triggers the transition shown when a new feed is swapped in
type Revealer interface {
	Reveal()
}

// NavigatorConfig wires the navigator to its collaborators
type NavigatorConfig struct {
	Fetcher  Fetcher
	Renderer Renderer
	Revealer Revealer

	// FetchTimeout bounds a single fetch, DefaultFetchTimeout when zero
	FetchTimeout time.Duration

	// Context is the parent of every fetch, context.Background when nil
	Context context.Context
}

// Navigator tracks the displayed feed and requests its content
type Navigator struct {
	store  *Store
	config NavigatorConfig

	mu        sync.Mutex
	current   int
	committed int
	seq       uint64
	pending   *Load

	// renderMu orders renders, rendered is the seq of the last load drawn
	renderMu sync.Mutex
	rendered uint64
}

func NewNavigator(store *Store, config NavigatorConfig) *Navigator {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	if config.Renderer == nil {
		config.Renderer = nopRenderer{}
	}
	if config.Revealer == nil {
		config.Revealer = nopRevealer{}
	}
	return &Navigator{store: store, config: config}
}

// Len is the number of feeds that can be navigated
func (n *Navigator) Len() int {
	return n.store.Len()
}

// Current is the index of the feed being shown or requested
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// LoadFeed requests the feed at index. done, if set, is called exactly once with the result.
func (n *Navigator) LoadFeed(index int, done func(error)) (*Load, error) {
	n.mu.Lock()
	length := n.store.Len()
	if length == 0 {
		n.mu.Unlock()
		return nil, ErrEmptyCollection
	}
	if index < 0 || index >= length {
		n.mu.Unlock()
		return nil, outOfRange(index, length)
	}
	return n.start(index, done)
}

// LoadNextFeed loads the feed after the current one, wrapping to the first
func (n *Navigator) LoadNextFeed(done func(error)) (*Load, error) {
	return n.step(1, done)
}

// LoadPreviousFeed loads the feed before the current one, wrapping to the last
func (n *Navigator) LoadPreviousFeed(done func(error)) (*Load, error) {
	return n.step(-1, done)
}

// Reload fetches the current feed again, even if its entries are already loaded
func (n *Navigator) Reload(done func(error)) (*Load, error) {
	return n.step(0, done)
}

func (n *Navigator) step(delta int, done func(error)) (*Load, error) {
	n.mu.Lock()
	length := n.store.Len()
	if length == 0 {
		n.mu.Unlock()
		return nil, ErrEmptyCollection
	}
	index := ((n.current+delta)%length + length) % length
	return n.start(index, done)
}

// start registers a new request and launches its fetch. Caller holds mu; start releases it.
func (n *Navigator) start(index int, done func(error)) (*Load, error) {
	feed, err := n.store.Feed(index)
	if err != nil {
		n.mu.Unlock()
		return nil, err
	}

	n.seq++
	load := newLoad(index, n.seq, done)
	superseded := n.pending
	n.pending = load
	n.current = index
	n.mu.Unlock()

	loadsRequested.Inc()
	log.WithFields(log.Fields{
		"index": index,
		"feed":  feed.Name,
		"seq":   load.seq,
	}).Info("Loading feed")

	if superseded != nil && superseded.resolve(ErrSuperseded) {
		loadsCompleted.WithLabelValues("superseded").Inc()
		log.WithFields(log.Fields{
			"index": superseded.index,
			"seq":   superseded.seq,
		}).Debug("Load superseded")
	}

	go n.fetch(load, feed.URL)

	return load, nil
}

func (n *Navigator) fetch(load *Load, url string) {
	ctx, cancel := context.WithTimeout(n.config.Context, n.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	entries, err := n.config.Fetcher.FetchEntries(ctx, url)
	fetchDuration.Observe(time.Since(start).Seconds())

	n.complete(load, url, entries, err)
}

// complete applies a fetch result if load is still the most recent request
func (n *Navigator) complete(load *Load, url string, entries []models.Entry, fetchErr error) {
	n.mu.Lock()
	if n.pending != load {
		n.mu.Unlock()
		log.WithFields(log.Fields{
			"index": load.index,
			"seq":   load.seq,
		}).Debug("Discarding stale fetch result")
		return
	}
	n.pending = nil

	if fetchErr != nil {
		n.current = n.committed
		n.mu.Unlock()

		loadsCompleted.WithLabelValues("fetch_error").Inc()
		log.WithFields(log.Fields{
			"index": load.index,
			"url":   url,
			"error": fetchErr,
		}).Warn("Failed to load feed")

		load.resolve(&FetchError{URL: url, Err: fetchErr})
		return
	}

	// entries are replaced while still holding mu so a newer request can't interleave
	feed, err := n.store.ReplaceEntries(load.index, entries)
	if err != nil {
		n.current = n.committed
		n.mu.Unlock()
		load.resolve(err)
		return
	}
	n.committed = load.index
	n.mu.Unlock()

	loadsCompleted.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"index":   load.index,
		"feed":    feed.Name,
		"entries": len(feed.Entries),
	}).Info("Feed loaded")

	n.render(load, feed)
	load.resolve(nil)
}

// render draws feed unless a newer load was drawn while this one waited for renderMu
func (n *Navigator) render(load *Load, feed models.Feed) {
	n.renderMu.Lock()
	defer n.renderMu.Unlock()

	if load.seq < n.rendered {
		log.WithFields(log.Fields{
			"index": load.index,
			"seq":   load.seq,
		}).Debug("Skipping render of an older load")
		return
	}
	n.rendered = load.seq
	n.config.Renderer.RenderFeed(feed)
	n.config.Revealer.Reveal()
}

type nopRenderer struct{}

func (nopRenderer) RenderFeed(models.Feed)        {}
func (nopRenderer) RenderFavorites([]models.Feed) {}

type nopRevealer struct{}

func (nopRevealer) Reveal() {}
