package feeds

import (
	"feedreader/models"

	log "github.com/sirupsen/logrus"
)

// Favorites adds and removes favorite feeds, independent of navigation.
// Every call re-renders the favorites view before it returns.
type Favorites struct {
	store     *Store
	navigator *Navigator
	renderer  Renderer
}

func NewFavorites(store *Store, navigator *Navigator, renderer Renderer) *Favorites {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	return &Favorites{store: store, navigator: navigator, renderer: renderer}
}

// AddFavorite marks the feed as favorite. Adding an existing favorite changes nothing.
func (f *Favorites) AddFavorite(index int) error {
	return f.set(index, true)
}

// RemoveFavorite drops the feed from the favorites
func (f *Favorites) RemoveFavorite(index int) error {
	return f.set(index, false)
}

// AddCurrentAsFavorite favorites whichever feed is current at call time
func (f *Favorites) AddCurrentAsFavorite() error {
	return f.AddFavorite(f.navigator.Current())
}

// Favorites returns the favorites view
func (f *Favorites) Favorites() []models.Feed {
	return f.store.Favorites()
}

// Render draws the favorites view as it stands
func (f *Favorites) Render() {
	f.renderer.RenderFavorites(f.store.Feeds())
}

func (f *Favorites) set(index int, favorite bool) error {
	changed, err := f.store.SetFavorite(index, favorite)
	if err != nil {
		return err
	}

	if changed {
		action := "removed"
		if favorite {
			action = "added"
		}
		favoritesChanged.WithLabelValues(action).Inc()
		log.WithFields(log.Fields{
			"index":    index,
			"favorite": favorite,
		}).Info("Favorite " + action)
	}

	f.Render()
	return nil
}
