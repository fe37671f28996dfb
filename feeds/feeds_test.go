package feeds_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"feedreader/feeds"
	"feedreader/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sources(n int) []models.FeedSource {
	srcs := make([]models.FeedSource, n)
	for i := range srcs {
		srcs[i] = models.FeedSource{
			URL:  fmt.Sprintf("http://example.com/feed-%d.xml", i),
			Name: fmt.Sprintf("Feed %d", i),
		}
	}
	return srcs
}

// stubFetcher answers immediately with entries titled after the url
type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *stubFetcher) FetchEntries(ctx context.Context, url string) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	return []models.Entry{
		{Title: "first of " + url, Link: url + "#1"},
		{Title: "second of " + url, Link: url + "#2"},
	}, nil
}

func (f *stubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// gatedFetcher blocks every fetch until the test releases it
type gatedFetcher struct {
	requests chan gatedRequest
}

type gatedRequest struct {
	url   string
	reply chan error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{requests: make(chan gatedRequest, 10)}
}

func (f *gatedFetcher) FetchEntries(ctx context.Context, url string) ([]models.Entry, error) {
	req := gatedRequest{url: url, reply: make(chan error)}
	f.requests <- req
	if err := <-req.reply; err != nil {
		return nil, err
	}
	return []models.Entry{{Title: "from " + url, Link: url}}, nil
}

func (f *gatedFetcher) next(t *testing.T) gatedRequest {
	t.Helper()
	select {
	case req := <-f.requests:
		return req
	case <-time.After(time.Second):
		t.Fatal("no fetch was started")
		return gatedRequest{}
	}
}

// recordingRenderer keeps the last rendered views as text
type recordingRenderer struct {
	mu        sync.Mutex
	feed      string
	favorites string
	reveals   int
}

func (r *recordingRenderer) RenderFeed(feed models.Feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(feed.Entries))
	for i, e := range feed.Entries {
		titles[i] = e.Title
	}
	r.feed = feed.Name + ":" + strings.Join(titles, "|")
}

func (r *recordingRenderer) RenderFavorites(all []models.Feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, f := range feeds.FavoritesOf(all) {
		names = append(names, f.Name)
	}
	r.favorites = strings.Join(names, ",")
}

func (r *recordingRenderer) Reveal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reveals++
}

func (r *recordingRenderer) snapshot() (string, string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feed, r.favorites, r.reveals
}

func newNavigator(t *testing.T, n int, fetcher feeds.Fetcher) (*feeds.Store, *feeds.Navigator, *recordingRenderer) {
	t.Helper()
	store, err := feeds.NewStore(sources(n))
	require.NoError(t, err)
	r := &recordingRenderer{}
	nav := feeds.NewNavigator(store, feeds.NavigatorConfig{
		Fetcher:  fetcher,
		Renderer: r,
		Revealer: r,
	})
	return store, nav, r
}

func wait(t *testing.T, load *feeds.Load) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return load.Wait(ctx)
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name     string
		sources  []models.FeedSource
		expected error
	}{
		{name: "empty", sources: nil, expected: feeds.ErrEmptyCollection},
		{name: "missing url", sources: []models.FeedSource{{Name: "x"}}, expected: feeds.ErrInvalidFeed},
		{name: "blank name", sources: []models.FeedSource{{URL: "http://x", Name: "  "}}, expected: feeds.ErrInvalidFeed},
		{name: "valid", sources: sources(4), expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := feeds.NewStore(tt.sources)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.sources), store.Len())
			for _, f := range store.Feeds() {
				assert.NotEmpty(t, f.URL)
				assert.NotEmpty(t, f.Name)
				assert.False(t, f.Favorite)
				assert.Empty(t, f.Entries)
			}
		})
	}
}

func TestStoreFeedOutOfRange(t *testing.T) {
	store, err := feeds.NewStore(sources(2))
	require.NoError(t, err)

	for _, index := range []int{-1, 2, 100} {
		_, err := store.Feed(index)
		assert.ErrorIs(t, err, feeds.ErrIndexOutOfRange, "index %d", index)
	}

	feed, err := store.Feed(1)
	require.NoError(t, err)
	assert.Equal(t, "Feed 1", feed.Name)
}

func TestEntryStatusIsMonotonic(t *testing.T) {
	store, err := feeds.NewStore(sources(1))
	require.NoError(t, err)
	_, err = store.ReplaceEntries(0, []models.Entry{{Title: "E", Link: "http://e"}, {Title: "F", Link: "http://f"}})
	require.NoError(t, err)

	feed, _ := store.Feed(0)
	assert.Equal(t, models.Unread, feed.Entries[0].Status)

	require.NoError(t, store.SetEntryStatus(0, 0, models.Read))
	feed, _ = store.Feed(0)
	assert.Equal(t, models.Read, feed.Entries[0].Status)

	// marking read again is a silent no-op
	require.NoError(t, store.SetEntryStatus(0, 0, models.Read))
	feed, _ = store.Feed(0)
	assert.Equal(t, models.Read, feed.Entries[0].Status)

	err = store.SetEntryStatus(0, 0, models.Unread)
	assert.ErrorIs(t, err, feeds.ErrStatusRegression)
	feed, _ = store.Feed(0)
	assert.Equal(t, models.Read, feed.Entries[0].Status)
	assert.Equal(t, models.Unread, feed.Entries[1].Status)

	// a fresh batch starts unread again
	_, err = store.ReplaceEntries(0, []models.Entry{{Title: "E", Link: "http://e", Status: models.Read}})
	require.NoError(t, err)
	feed, _ = store.Feed(0)
	assert.Equal(t, models.Unread, feed.Entries[0].Status)
}

func TestSetEntryStatusErrors(t *testing.T) {
	store, err := feeds.NewStore(sources(2))
	require.NoError(t, err)
	_, err = store.ReplaceEntries(0, []models.Entry{{Title: "E"}})
	require.NoError(t, err)

	assert.ErrorIs(t, store.SetEntryStatus(5, 0, models.Read), feeds.ErrIndexOutOfRange)
	assert.ErrorIs(t, store.SetEntryStatus(0, 1, models.Read), feeds.ErrIndexOutOfRange)
	assert.ErrorIs(t, store.SetEntryStatus(1, 0, models.Read), feeds.ErrIndexOutOfRange)
	assert.ErrorIs(t, store.SetEntryStatus(0, 0, "skimmed"), feeds.ErrInvalidStatus)
}

type countingRecorder struct {
	favorites []bool
	reads     []string
}

func (r *countingRecorder) FavoriteChanged(feed models.Feed) {
	r.favorites = append(r.favorites, feed.Favorite)
}

func (r *countingRecorder) EntryRead(feed models.Feed, entry models.Entry) {
	r.reads = append(r.reads, entry.Link)
}

func TestStoreRecorderSeesOnlyChanges(t *testing.T) {
	store, err := feeds.NewStore(sources(2))
	require.NoError(t, err)
	rec := &countingRecorder{}
	store.SetRecorder(rec)
	_, err = store.ReplaceEntries(1, []models.Entry{{Title: "E", Link: "http://e"}})
	require.NoError(t, err)

	changed, err := store.SetFavorite(0, true)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.SetFavorite(0, true)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, store.SetEntryStatus(1, 0, models.Read))
	require.NoError(t, store.SetEntryStatus(1, 0, models.Read))

	assert.Equal(t, []bool{true}, rec.favorites)
	assert.Equal(t, []string{"http://e"}, rec.reads)
}

func TestToggleFavorite(t *testing.T) {
	store, err := feeds.NewStore(sources(3))
	require.NoError(t, err)

	fav, err := store.ToggleFavorite(2)
	require.NoError(t, err)
	assert.True(t, fav)
	fav, err = store.ToggleFavorite(0)
	require.NoError(t, err)
	assert.True(t, fav)

	names := []string{}
	for _, f := range store.Favorites() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Feed 0", "Feed 2"}, names, "favorites keep collection order")

	fav, err = store.ToggleFavorite(2)
	require.NoError(t, err)
	assert.False(t, fav)
	assert.Len(t, store.Favorites(), 1)

	_, err = store.ToggleFavorite(3)
	assert.ErrorIs(t, err, feeds.ErrIndexOutOfRange)
}

func TestRestoreFavorites(t *testing.T) {
	store, err := feeds.NewStore(sources(3))
	require.NoError(t, err)
	rec := &countingRecorder{}
	store.SetRecorder(rec)

	n := store.RestoreFavorites([]string{"http://example.com/feed-1.xml", "http://gone.example.com"})
	assert.Equal(t, 1, n)
	assert.Len(t, store.Favorites(), 1)
	assert.Empty(t, rec.favorites)
}

func TestLoadNextFeedWraps(t *testing.T) {
	for _, length := range []int{1, 2, 4} {
		for i := 0; i < length; i++ {
			t.Run(fmt.Sprintf("len %d from %d", length, i), func(t *testing.T) {
				_, nav, _ := newNavigator(t, length, &stubFetcher{})
				load, err := nav.LoadFeed(i, nil)
				require.NoError(t, err)
				require.NoError(t, wait(t, load))

				load, err = nav.LoadNextFeed(nil)
				require.NoError(t, err)
				require.NoError(t, wait(t, load))
				assert.Equal(t, (i+1)%length, nav.Current())
			})
		}
	}
}

func TestLoadPreviousFeedWraps(t *testing.T) {
	for _, length := range []int{1, 2, 4} {
		for i := 0; i < length; i++ {
			t.Run(fmt.Sprintf("len %d from %d", length, i), func(t *testing.T) {
				_, nav, _ := newNavigator(t, length, &stubFetcher{})
				load, err := nav.LoadFeed(i, nil)
				require.NoError(t, err)
				require.NoError(t, wait(t, load))

				load, err = nav.LoadPreviousFeed(nil)
				require.NoError(t, err)
				require.NoError(t, wait(t, load))
				assert.Equal(t, (i-1+length)%length, nav.Current())
			})
		}
	}
}

func TestTwoFeedScenario(t *testing.T) {
	_, nav, r := newNavigator(t, 2, &stubFetcher{})
	assert.Equal(t, 0, nav.Current())

	load, err := nav.LoadNextFeed(nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, load))
	assert.Equal(t, 1, nav.Current())
	feed, _, _ := r.snapshot()
	assert.True(t, strings.HasPrefix(feed, "Feed 1:"))

	load, err = nav.LoadNextFeed(nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, load))
	assert.Equal(t, 0, nav.Current())
}

func TestLoadFeedPopulatesAndReveals(t *testing.T) {
	store, nav, r := newNavigator(t, 2, &stubFetcher{})

	called := make(chan error, 2)
	load, err := nav.LoadFeed(1, func(err error) { called <- err })
	require.NoError(t, err)
	assert.Equal(t, 1, load.Index())
	require.NoError(t, wait(t, load))

	assert.NoError(t, <-called)
	assert.Len(t, called, 0, "done fires exactly once")

	feed, err := store.Feed(1)
	require.NoError(t, err)
	require.NotEmpty(t, feed.Entries)
	for _, e := range feed.Entries {
		assert.Equal(t, models.Unread, e.Status)
	}

	rendered, _, reveals := r.snapshot()
	assert.Equal(t, "Feed 1:first of http://example.com/feed-1.xml|second of http://example.com/feed-1.xml", rendered)
	assert.Equal(t, 1, reveals)
}

func TestLoadFeedOutOfRange(t *testing.T) {
	fetcher := &stubFetcher{}
	_, nav, _ := newNavigator(t, 3, fetcher)
	load, err := nav.LoadFeed(2, nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, load))

	for _, index := range []int{-1, 3} {
		load, err := nav.LoadFeed(index, nil)
		assert.Nil(t, load)
		assert.ErrorIs(t, err, feeds.ErrIndexOutOfRange)
		assert.Equal(t, 2, nav.Current())
	}
	assert.Len(t, fetcher.Calls(), 1)
}

func TestReloadTargetsCurrentFeed(t *testing.T) {
	fetcher := newGatedFetcher()
	_, nav, _ := newNavigator(t, 4, fetcher)

	load, err := nav.LoadFeed(2, nil)
	require.NoError(t, err)
	first := fetcher.next(t)

	// reload right away, without waiting for the first load
	reload, err := nav.Reload(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reload.Index())
	second := fetcher.next(t)
	assert.ErrorIs(t, wait(t, load), feeds.ErrSuperseded)

	second.reply <- nil
	require.NoError(t, wait(t, reload))
	first.reply <- nil

	reload, err = nav.Reload(nil)
	require.NoError(t, err)
	third := fetcher.next(t)
	third.reply <- nil
	require.NoError(t, wait(t, reload))

	for _, req := range []gatedRequest{first, second, third} {
		assert.Equal(t, "http://example.com/feed-2.xml", req.url, "reload must fetch again")
	}
	assert.Equal(t, 2, nav.Current())
}

func TestFetchErrorLeavesStateUnchanged(t *testing.T) {
	boom := errors.New("connection refused")
	fetcher := &stubFetcher{fail: map[string]error{"http://example.com/feed-1.xml": boom}}
	store, nav, r := newNavigator(t, 3, fetcher)

	load, err := nav.LoadFeed(0, nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, load))
	before, _ := store.Feed(1)

	var got error
	load, err = nav.LoadFeed(1, func(err error) { got = err })
	require.NoError(t, err)
	err = wait(t, load)

	assert.ErrorIs(t, err, feeds.ErrFetch)
	assert.ErrorIs(t, err, boom)
	var fetchErr *feeds.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "http://example.com/feed-1.xml", fetchErr.URL)
	assert.Equal(t, err, got)

	assert.Equal(t, 0, nav.Current(), "index rolls back to the last loaded feed")
	after, _ := store.Feed(1)
	assert.Equal(t, before, after)
	_, _, reveals := r.snapshot()
	assert.Equal(t, 1, reveals, "failed loads are not revealed")
}

func TestNewerLoadSupersedesOlder(t *testing.T) {
	fetcher := newGatedFetcher()
	store, nav, r := newNavigator(t, 3, fetcher)

	var mu sync.Mutex
	results := map[string][]error{}
	record := func(name string) func(error) {
		return func(err error) {
			mu.Lock()
			defer mu.Unlock()
			results[name] = append(results[name], err)
		}
	}

	first, err := nav.LoadFeed(1, record("first"))
	require.NoError(t, err)
	firstReq := fetcher.next(t)

	second, err := nav.LoadFeed(2, record("second"))
	require.NoError(t, err)
	secondReq := fetcher.next(t)

	assert.ErrorIs(t, wait(t, first), feeds.ErrSuperseded)
	assert.Equal(t, 2, nav.Current())

	secondReq.reply <- nil
	require.NoError(t, wait(t, second))

	// the stale fetch finishes last and must not touch anything
	firstReq.reply <- nil
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 2, nav.Current())
	feed1, _ := store.Feed(1)
	assert.Empty(t, feed1.Entries)
	feed2, _ := store.Feed(2)
	assert.Equal(t, "from http://example.com/feed-2.xml", feed2.Entries[0].Title)

	mu.Lock()
	assert.Len(t, results["first"], 1)
	assert.ErrorIs(t, results["first"][0], feeds.ErrSuperseded)
	assert.Equal(t, []error{nil}, results["second"])
	mu.Unlock()

	_, _, reveals := r.snapshot()
	assert.Equal(t, 1, reveals)
}

func TestFavoritesScenario(t *testing.T) {
	store, nav, r := newNavigator(t, 3, &stubFetcher{})
	favs := feeds.NewFavorites(store, nav, r)

	feed, _ := store.Feed(0)
	assert.False(t, feed.Favorite)

	require.NoError(t, favs.AddFavorite(0))
	feed, _ = store.Feed(0)
	assert.True(t, feed.Favorite)
	_, view, _ := r.snapshot()
	assert.Equal(t, "Feed 0", view)

	require.NoError(t, favs.AddFavorite(0))
	_, again, _ := r.snapshot()
	assert.Equal(t, view, again, "adding twice leaves the view byte-identical")

	require.NoError(t, favs.RemoveFavorite(0))
	feed, _ = store.Feed(0)
	assert.False(t, feed.Favorite)
	_, view, _ = r.snapshot()
	assert.NotContains(t, view, "Feed 0")

	// removing a non favorite is a self-loop
	require.NoError(t, favs.RemoveFavorite(0))
	assert.Empty(t, favs.Favorites())

	assert.ErrorIs(t, favs.AddFavorite(7), feeds.ErrIndexOutOfRange)
}

func TestAddCurrentAsFavoriteResolvesAtCallTime(t *testing.T) {
	store, nav, r := newNavigator(t, 3, &stubFetcher{})
	favs := feeds.NewFavorites(store, nav, r)

	require.NoError(t, favs.AddCurrentAsFavorite())

	load, err := nav.LoadFeed(2, nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, load))
	require.NoError(t, favs.AddCurrentAsFavorite())

	_, view, _ := r.snapshot()
	assert.Equal(t, "Feed 0,Feed 2", view)
}

// blockingRenderer holds the render of one feed until released
type blockingRenderer struct {
	*recordingRenderer
	block   string
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRenderer) RenderFeed(feed models.Feed) {
	if feed.Name == r.block {
		close(r.entered)
		<-r.release
	}
	r.recordingRenderer.RenderFeed(feed)
}

func TestSlowRenderDoesNotOverwriteNewerFeed(t *testing.T) {
	store, err := feeds.NewStore(sources(3))
	require.NoError(t, err)
	r := &blockingRenderer{
		recordingRenderer: &recordingRenderer{},
		block:             "Feed 0",
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	nav := feeds.NewNavigator(store, feeds.NavigatorConfig{
		Fetcher:  &stubFetcher{},
		Renderer: r,
		Revealer: r,
	})
	loaded := func(index int) func() bool {
		return func() bool {
			feed, _ := store.Feed(index)
			return len(feed.Entries) > 0
		}
	}

	first, err := nav.LoadFeed(0, nil)
	require.NoError(t, err)
	<-r.entered

	// both newer loads commit while the first render is stuck
	second, err := nav.LoadFeed(1, nil)
	require.NoError(t, err)
	require.Eventually(t, loaded(1), time.Second, time.Millisecond)
	third, err := nav.LoadFeed(2, nil)
	require.NoError(t, err)
	require.Eventually(t, loaded(2), time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	close(r.release)
	require.NoError(t, wait(t, first))
	require.NoError(t, wait(t, second))
	require.NoError(t, wait(t, third))

	rendered, _, _ := r.snapshot()
	assert.True(t, strings.HasPrefix(rendered, "Feed 2:"), "view shows %q", rendered)
	assert.Equal(t, 2, nav.Current())
}

func TestMarkReadReturnsSnapshot(t *testing.T) {
	store, err := feeds.NewStore(sources(1))
	require.NoError(t, err)
	_, err = store.ReplaceEntries(0, []models.Entry{
		{Title: "E", Link: "http://e"},
		{Title: "F", Link: "http://f"},
		{Title: "G", Link: "http://g"},
	})
	require.NoError(t, err)

	marked, err := store.MarkRead(0, 2)
	require.NoError(t, err)

	// a shorter batch arriving afterwards leaves the returned entry intact
	_, err = store.ReplaceEntries(0, []models.Entry{{Title: "H", Link: "http://h"}})
	require.NoError(t, err)
	assert.Equal(t, models.Entry{Title: "G", Link: "http://g", Status: models.Read}, marked)

	_, err = store.MarkRead(0, 2)
	assert.ErrorIs(t, err, feeds.ErrIndexOutOfRange)
}

func TestMarkReadRacesWithNewBatch(t *testing.T) {
	store, err := feeds.NewStore(sources(1))
	require.NoError(t, err)
	long := []models.Entry{{Title: "A", Link: "http://a"}, {Title: "B", Link: "http://b"}, {Title: "C", Link: "http://c"}}
	short := []models.Entry{{Title: "D", Link: "http://d"}}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			batch := long
			if i%2 == 1 {
				batch = short
			}
			_, err := store.ReplaceEntries(0, batch)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			marked, err := store.MarkRead(0, 2)
			if err != nil {
				assert.ErrorIs(t, err, feeds.ErrIndexOutOfRange)
				continue
			}
			assert.Equal(t, "http://c", marked.Link)
			assert.Equal(t, models.Read, marked.Status)
		}
	}()
	wg.Wait()
}
