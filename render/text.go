package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"feedreader/feeds"
	"feedreader/models"

	"github.com/samber/lo"
)

// TextView keeps the rendered feed and favorites list as plain text.
// The same state always renders to the same bytes.
type TextView struct {
	mu        sync.RWMutex
	feed      string
	favorites string
	reveals   int

	// Out, when set, receives every rendered feed followed by the favorites list
	Out io.Writer
}

func NewTextView(out io.Writer) *TextView {
	return &TextView{Out: out, favorites: FormatFavorites(nil)}
}

func (v *TextView) RenderFeed(feed models.Feed) {
	text := FormatFeed(feed)

	v.mu.Lock()
	v.feed = text
	out := v.Out
	v.mu.Unlock()

	if out != nil {
		fmt.Fprint(out, text)
	}
}

func (v *TextView) RenderFavorites(all []models.Feed) {
	text := FormatFavorites(feeds.FavoritesOf(all))

	v.mu.Lock()
	v.favorites = text
	v.mu.Unlock()
}

func (v *TextView) Reveal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reveals++
}

// Feed returns the text of the last rendered feed
func (v *TextView) Feed() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.feed
}

// Favorites returns the text of the favorites list
func (v *TextView) Favorites() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.favorites
}

// Reveals is the number of transitions triggered so far
func (v *TextView) Reveals() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.reveals
}

// FormatFeed renders a feed title and its entries, one per line
func FormatFeed(feed models.Feed) string {
	var sb strings.Builder
	sb.WriteString("== " + feed.Name)
	if feed.Favorite {
		sb.WriteString(" ★")
	}
	sb.WriteString(" ==\n")

	if len(feed.Entries) == 0 {
		sb.WriteString("  (no entries)\n")
		return sb.String()
	}
	for i, e := range feed.Entries {
		mark := " "
		if e.Status == models.Read {
			mark = "✓"
		}
		fmt.Fprintf(&sb, "%s %2d. %s\n      %s\n", mark, i, e.Title, e.Link)
	}
	return sb.String()
}

// FormatFavorites renders the favorites list
func FormatFavorites(favorites []models.Feed) string {
	if len(favorites) == 0 {
		return "Favorites: (none)\n"
	}
	names := lo.Map(favorites, func(f models.Feed, _ int) string {
		return "- " + f.Name
	})
	return "Favorites:\n" + strings.Join(names, "\n") + "\n"
}

var _ feeds.Renderer = (*TextView)(nil)
var _ feeds.Revealer = (*TextView)(nil)
