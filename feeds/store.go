// Package feeds holds the feed collection and the logic that navigates it
package feeds

import (
	"fmt"
	"strings"
	"sync"

	"feedreader/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Recorder is notified after a state change actually happened
type Recorder interface {
	FavoriteChanged(feed models.Feed)
	EntryRead(feed models.Feed, entry models.Entry)
}

// Store is the ordered feed collection. All mutations happen under one lock.
type Store struct {
	mu       sync.RWMutex
	feeds    []models.Feed
	recorder Recorder
}

// NewStore validates the sources and builds a collection with no entries loaded
func NewStore(sources []models.FeedSource) (*Store, error) {
	if len(sources) == 0 {
		return nil, ErrEmptyCollection
	}

	feeds := make([]models.Feed, len(sources))
	for i, src := range sources {
		if strings.TrimSpace(src.URL) == "" || strings.TrimSpace(src.Name) == "" {
			return nil, fmt.Errorf("%w: feed %d", ErrInvalidFeed, i)
		}
		feeds[i] = models.Feed{URL: src.URL, Name: src.Name}
	}

	return &Store{feeds: feeds}, nil
}

// SetRecorder installs a recorder for favorite and read transitions
func (s *Store) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feeds)
}

// Feed returns a copy of the feed at index
func (s *Store) Feed(index int) (models.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.feeds) {
		return models.Feed{}, outOfRange(index, len(s.feeds))
	}
	return s.feeds[index].Clone(), nil
}

// Feeds returns a snapshot of the whole collection
func (s *Store) Feeds() []models.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Favorites returns the favorited feeds in collection order
func (s *Store) Favorites() []models.Feed {
	return FavoritesOf(s.Feeds())
}

// FavoritesOf derives the favorites view from a collection snapshot
func FavoritesOf(feeds []models.Feed) []models.Feed {
	return lo.Filter(feeds, func(f models.Feed, _ int) bool {
		return f.Favorite
	})
}

// SetEntryStatus moves an entry to status. Setting the current status again is a no-op.
func (s *Store) SetEntryStatus(feedIndex, entryIndex int, status models.EntryStatus) error {
	_, err := s.setEntryStatus(feedIndex, entryIndex, status)
	return err
}

// MarkRead marks the entry read and returns a copy of it taken under the lock,
// so callers never index into a batch that may since have been replaced.
func (s *Store) MarkRead(feedIndex, entryIndex int) (models.Entry, error) {
	return s.setEntryStatus(feedIndex, entryIndex, models.Read)
}

func (s *Store) setEntryStatus(feedIndex, entryIndex int, status models.EntryStatus) (models.Entry, error) {
	if !status.Valid() {
		return models.Entry{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	if feedIndex < 0 || feedIndex >= len(s.feeds) {
		n := len(s.feeds)
		s.mu.Unlock()
		return models.Entry{}, outOfRange(feedIndex, n)
	}
	feed := &s.feeds[feedIndex]
	if entryIndex < 0 || entryIndex >= len(feed.Entries) {
		n := len(feed.Entries)
		s.mu.Unlock()
		return models.Entry{}, fmt.Errorf("entry of feed %d: %w", feedIndex, outOfRange(entryIndex, n))
	}

	entry := &feed.Entries[entryIndex]
	if entry.Status == status {
		unchanged := *entry
		s.mu.Unlock()
		return unchanged, nil
	}
	if entry.Status == models.Read {
		unchanged := *entry
		s.mu.Unlock()
		return unchanged, ErrStatusRegression
	}

	entry.Status = status
	snapshot, changed := feed.Clone(), *entry
	recorder := s.recorder
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"feed":  snapshot.Name,
		"entry": changed.Link,
	}).Debug("Entry marked read")

	if recorder != nil {
		recorder.EntryRead(snapshot, changed)
	}
	return changed, nil
}

// ToggleFavorite flips the favorite flag and returns its new value
func (s *Store) ToggleFavorite(feedIndex int) (bool, error) {
	s.mu.Lock()
	if feedIndex < 0 || feedIndex >= len(s.feeds) {
		n := len(s.feeds)
		s.mu.Unlock()
		return false, outOfRange(feedIndex, n)
	}
	s.feeds[feedIndex].Favorite = !s.feeds[feedIndex].Favorite
	snapshot := s.feeds[feedIndex].Clone()
	recorder := s.recorder
	s.mu.Unlock()

	if recorder != nil {
		recorder.FavoriteChanged(snapshot)
	}
	return snapshot.Favorite, nil
}

// SetFavorite sets the flag and reports whether anything changed
func (s *Store) SetFavorite(feedIndex int, favorite bool) (bool, error) {
	s.mu.Lock()
	if feedIndex < 0 || feedIndex >= len(s.feeds) {
		n := len(s.feeds)
		s.mu.Unlock()
		return false, outOfRange(feedIndex, n)
	}
	if s.feeds[feedIndex].Favorite == favorite {
		s.mu.Unlock()
		return false, nil
	}
	s.feeds[feedIndex].Favorite = favorite
	snapshot := s.feeds[feedIndex].Clone()
	recorder := s.recorder
	s.mu.Unlock()

	if recorder != nil {
		recorder.FavoriteChanged(snapshot)
	}
	return true, nil
}

// RestoreFavorites marks the feeds whose url is in urls without notifying the recorder
func (s *Store) RestoreFavorites(urls []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for i := range s.feeds {
		if lo.Contains(urls, s.feeds[i].URL) {
			s.feeds[i].Favorite = true
			restored++
		}
	}
	return restored
}

// ReplaceEntries swaps a feed's entries for a fresh batch, all unread
func (s *Store) ReplaceEntries(feedIndex int, entries []models.Entry) (models.Feed, error) {
	fresh := lo.Map(entries, func(e models.Entry, _ int) models.Entry {
		return models.Entry{Title: e.Title, Link: e.Link, Status: models.Unread}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if feedIndex < 0 || feedIndex >= len(s.feeds) {
		return models.Feed{}, outOfRange(feedIndex, len(s.feeds))
	}
	s.feeds[feedIndex].Entries = fresh
	return s.feeds[feedIndex].Clone(), nil
}

// snapshot copies the collection. Caller holds mu.
func (s *Store) snapshot() []models.Feed {
	return lo.Map(s.feeds, func(f models.Feed, _ int) models.Feed {
		return f.Clone()
	})
}
