// Package inactivity returns the widget to its first feed after a period without navigation.
package inactivity

import (
	"sync"
	"time"

	"feedreader/clock"
	"feedreader/feeds"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const DefaultPeriod = 15 * time.Second

var (
	idleLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_idle_loads_total",
		Help: "Loads of the first feed triggered by inactivity",
	})

	idleResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_idle_resets_total",
		Help: "Times the inactivity countdown was restarted by navigation",
	})
)

// Loader is the part of the navigator the timer drives
type Loader interface {
	Len() int
	LoadFeed(index int, done func(error)) (*feeds.Load, error)
}

// Timer is a repeating countdown that loads feed 0 every time it elapses
type Timer struct {
	clock  clock.Clock
	period time.Duration
	loader Loader

	mu        sync.Mutex
	installed bool
	handle    clock.Handle
	// bumped on every install, reset and uninstall so ticks of an old schedule are ignored
	generation uint64
}

func New(c clock.Clock, period time.Duration, loader Loader) *Timer {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Timer{clock: c, period: period, loader: loader}
}

func (t *Timer) Period() time.Duration {
	return t.period
}

// Install starts the countdown. Installing twice is a no-op.
func (t *Timer) Install() error {
	if t.loader.Len() == 0 {
		return feeds.ErrEmptyCollection
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.installed {
		return nil
	}
	t.schedule()
	t.installed = true

	log.WithFields(log.Fields{
		"period": t.period,
	}).Info("Inactivity timer installed")
	return nil
}

// Uninstall cancels the countdown. Safe to call any number of times.
func (t *Timer) Uninstall() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.installed {
		return
	}
	t.clock.Cancel(t.handle)
	t.generation++
	t.installed = false

	log.Info("Inactivity timer uninstalled")
}

// Reset restarts the countdown from zero. Does nothing when not installed.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.installed {
		return
	}
	t.clock.Cancel(t.handle)
	t.schedule()
	idleResets.Inc()
}

func (t *Timer) Installed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installed
}

// schedule must be called with mu held
func (t *Timer) schedule() {
	t.generation++
	generation := t.generation
	t.handle = t.clock.Schedule(t.period, func() { t.elapsed(generation) })
}

// elapsed holds mu while loading, so it cannot run once Uninstall or Reset has returned.
// LoadFeed only starts a fetch and never calls back into the timer.
func (t *Timer) elapsed(generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.installed || generation != t.generation {
		log.Debug("Ignoring tick of a cancelled countdown")
		return
	}

	idleLoads.Inc()
	log.Debug("Inactive, returning to the first feed")

	if _, err := t.loader.LoadFeed(0, nil); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Inactivity load failed")
	}
}
