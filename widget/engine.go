// Package widget assembles the feed widget: one store, navigator, favorites controller,
// inactivity timer and menu per Engine.
package widget

import (
	"context"
	"fmt"
	"time"

	"feedreader/clock"
	"feedreader/feeds"
	"feedreader/inactivity"
	"feedreader/models"

	log "github.com/sirupsen/logrus"
)

// Options configures a new Engine
type Options struct {
	Sources  []models.FeedSource
	Fetcher  feeds.Fetcher
	Renderer feeds.Renderer
	Revealer feeds.Revealer

	// Clock drives the inactivity timer, a real clock when nil
	Clock        clock.Clock
	IdlePeriod   time.Duration
	FetchTimeout time.Duration

	// Recorder, when set, persists favorite and read transitions
	Recorder feeds.Recorder
	// Favorites are urls restored as favorites before the first render
	Favorites []string

	Context context.Context
}

// Engine is the widget's state engine. UI adapters call its methods and nothing else.
type Engine struct {
	store     *feeds.Store
	navigator *feeds.Navigator
	favorites *feeds.Favorites
	timer     *inactivity.Timer
	menu      *Menu
}

func New(opts Options) (*Engine, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("widget needs a fetcher")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}

	store, err := feeds.NewStore(opts.Sources)
	if err != nil {
		return nil, err
	}
	if len(opts.Favorites) > 0 {
		restored := store.RestoreFavorites(opts.Favorites)
		log.WithFields(log.Fields{
			"restored": restored,
		}).Info("Restored favorites")
	}
	if opts.Recorder != nil {
		store.SetRecorder(opts.Recorder)
	}

	navigator := feeds.NewNavigator(store, feeds.NavigatorConfig{
		Fetcher:      opts.Fetcher,
		Renderer:     opts.Renderer,
		Revealer:     opts.Revealer,
		FetchTimeout: opts.FetchTimeout,
		Context:      opts.Context,
	})

	return &Engine{
		store:     store,
		navigator: navigator,
		favorites: feeds.NewFavorites(store, navigator, opts.Renderer),
		timer:     inactivity.New(opts.Clock, opts.IdlePeriod, navigator),
		menu:      NewMenu(),
	}, nil
}

// Start renders the favorites, installs the inactivity timer and loads the first feed
func (e *Engine) Start() (*feeds.Load, error) {
	e.favorites.Render()
	if err := e.timer.Install(); err != nil {
		return nil, err
	}
	return e.navigator.LoadFeed(0, nil)
}

// Close stops the inactivity timer. In-flight loads finish on their own.
func (e *Engine) Close() {
	e.timer.Uninstall()
}

// LoadFeed shows the feed at index. Accepted navigation restarts the inactivity countdown,
// a rejected index leaves it running. done may run on the idle timer's goroutine when an
// idle load supersedes this one, so it must not navigate synchronously.
func (e *Engine) LoadFeed(index int, done func(error)) (*feeds.Load, error) {
	return e.navigated(e.navigator.LoadFeed(index, done))
}

func (e *Engine) LoadNextFeed(done func(error)) (*feeds.Load, error) {
	return e.navigated(e.navigator.LoadNextFeed(done))
}

func (e *Engine) LoadPreviousFeed(done func(error)) (*feeds.Load, error) {
	return e.navigated(e.navigator.LoadPreviousFeed(done))
}

// Reload fetches the current feed again
func (e *Engine) Reload(done func(error)) (*feeds.Load, error) {
	return e.navigated(e.navigator.Reload(done))
}

// navigated resets the countdown once the navigator has accepted a request.
// Fetch failures come later through the load and still count as navigation.
func (e *Engine) navigated(load *feeds.Load, err error) (*feeds.Load, error) {
	if err == nil {
		e.timer.Reset()
	}
	return load, err
}

func (e *Engine) AddFavorite(index int) error {
	return e.favorites.AddFavorite(index)
}

func (e *Engine) RemoveFavorite(index int) error {
	return e.favorites.RemoveFavorite(index)
}

func (e *Engine) AddCurrentAsFavorite() error {
	return e.favorites.AddCurrentAsFavorite()
}

// MarkRead flags an entry as read, as clicking its link does, and returns the entry as marked
func (e *Engine) MarkRead(feedIndex, entryIndex int) (models.Entry, error) {
	return e.store.MarkRead(feedIndex, entryIndex)
}

func (e *Engine) SetEntryStatus(feedIndex, entryIndex int, status models.EntryStatus) error {
	return e.store.SetEntryStatus(feedIndex, entryIndex, status)
}

func (e *Engine) Feed(index int) (models.Feed, error) {
	return e.store.Feed(index)
}

func (e *Engine) Feeds() []models.Feed {
	return e.store.Feeds()
}

func (e *Engine) Favorites() []models.Feed {
	return e.favorites.Favorites()
}

func (e *Engine) Current() int {
	return e.navigator.Current()
}

func (e *Engine) Len() int {
	return e.store.Len()
}

func (e *Engine) Menu() *Menu {
	return e.menu
}

func (e *Engine) Timer() *inactivity.Timer {
	return e.timer
}

// State is a snapshot of everything the widget shows
func (e *Engine) State() models.StateResponse {
	return models.StateResponse{
		Current:    e.Current(),
		MenuHidden: e.menu.Hidden(),
		Feeds:      e.Feeds(),
	}
}
