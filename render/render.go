// Package render turns engine state into views. The engine only decides what to show;
// the types here draw it.
package render

import (
	"feedreader/feeds"
	"feedreader/models"
)

// Fanout forwards every render and reveal to all of its targets in order
type Fanout struct {
	Renderers []feeds.Renderer
	Revealers []feeds.Revealer
}

func (f *Fanout) RenderFeed(feed models.Feed) {
	for _, r := range f.Renderers {
		r.RenderFeed(feed)
	}
}

func (f *Fanout) RenderFavorites(all []models.Feed) {
	for _, r := range f.Renderers {
		r.RenderFavorites(all)
	}
}

func (f *Fanout) Reveal() {
	for _, r := range f.Revealers {
		r.Reveal()
	}
}

var _ feeds.Renderer = (*Fanout)(nil)
var _ feeds.Revealer = (*Fanout)(nil)
