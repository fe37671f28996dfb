package server

import (
	"sync"

	"feedreader/feeds"
	"feedreader/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	sseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedreader_sse_clients",
		Help: "Connected event stream clients",
	})

	sseDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedreader_sse_dropped_events_total",
		Help: "Events skipped because a client channel was full",
	}, []string{"event"})
)

// Event is one server-sent event
type Event struct {
	Name string
	Data interface{}
}

// Broadcaster fans render and reveal callbacks out to every connected SSE client
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan Event),
	}
}

func (b *Broadcaster) RenderFeed(feed models.Feed) {
	b.broadcast(Event{Name: "render-feed", Data: models.RenderFeedEvent{Feed: feed}})
}

func (b *Broadcaster) RenderFavorites(all []models.Feed) {
	b.broadcast(Event{
		Name: "render-favorites",
		Data: models.RenderFavoritesEvent{Favorites: feeds.FavoritesOf(all)},
	})
}

func (b *Broadcaster) Reveal() {
	b.broadcast(Event{Name: "reveal", Data: models.RevealEvent{}})
}

func (b *Broadcaster) broadcast(event Event) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- event: // Non-blocking send
		default:
			sseDropped.WithLabelValues(event.Name).Inc()
			log.Warnf("Client channel full, skipping %s for client: %v", event.Name, id)
		}
	}
}

// AddClient registers a client channel under key
func (b *Broadcaster) AddClient(key string, client chan Event) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	sseClients.Set(float64(len(b.clients)))
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and forgets the client channel. Unknown keys are ignored.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}
	sseClients.Set(float64(len(b.clients)))

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
	sseClients.Set(0)
}

var _ feeds.Renderer = (*Broadcaster)(nil)
var _ feeds.Revealer = (*Broadcaster)(nil)
