package models

import "time"

// EntryStatus is the read state of a single entry
type EntryStatus string

const (
	Unread EntryStatus = "unread"
	Read   EntryStatus = "read"
)

// Valid reports whether the status is one of the known states
func (s EntryStatus) Valid() bool {
	return s == Unread || s == Read
}

// Entry is one item of a feed
type Entry struct {
	Title  string      `json:"title"`
	Link   string      `json:"link"`
	Status EntryStatus `json:"status"`
}

// Feed with its entries and the user's favorite flag
type Feed struct {
	URL      string  `json:"url"`
	Name     string  `json:"name"`
	Entries  []Entry `json:"entries"`
	Favorite bool    `json:"favoriteStatus"`
}

// Clone returns a deep copy so callers can't alias the store's entries
func (f Feed) Clone() Feed {
	c := f
	if f.Entries != nil {
		c.Entries = make([]Entry, len(f.Entries))
		copy(c.Entries, f.Entries)
	}
	return c
}

// FeedSource is the static part of a feed as it comes from configuration
type FeedSource struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// StateResponse describes what the widget currently shows
type StateResponse struct {
	Current    int    `json:"current"`
	MenuHidden bool   `json:"menuHidden"`
	Feeds      []Feed `json:"feeds"`
}

// LoadResponse is returned by the load routes
type LoadResponse struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadRecord is one persisted read transition
type ReadRecord struct {
	FeedURL string    `json:"feedUrl"`
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	ReadAt  time.Time `json:"readAt"`
}

// RenderFeedEvent fired when a feed has been rendered
type RenderFeedEvent struct {
	Feed Feed `json:"feed"`
}

// RenderFavoritesEvent fired when the favorites list has been re-rendered
type RenderFavoritesEvent struct {
	Favorites []Feed `json:"favorites"`
}

// RevealEvent fired once per completed load
type RevealEvent struct{}
