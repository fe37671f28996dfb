// Package clock provides the timer abstraction used by the inactivity countdown.
package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Handle identifies a scheduled callback
type Handle uint64

// Clock schedules repeating callbacks
type Clock interface {
	// Schedule calls fn every interval until the returned handle is cancelled
	Schedule(interval time.Duration, fn func()) Handle
	// Cancel stops a schedule. Unknown or already cancelled handles are ignored.
	// A tick already being delivered may still run fn once.
	Cancel(h Handle)
}

// Real is a Clock backed by wall clock tickers, one goroutine per schedule
type Real struct {
	clock bclock.Clock

	mu      sync.Mutex
	next    Handle
	tickers map[Handle]*realTicker
}

type realTicker struct {
	ticker *bclock.Ticker
	done   chan struct{}
}

func NewReal() *Real {
	return &Real{clock: bclock.New(), tickers: make(map[Handle]*realTicker)}
}

func (c *Real) Schedule(interval time.Duration, fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	h := c.next
	t := &realTicker{
		ticker: c.clock.Ticker(interval),
		done:   make(chan struct{}),
	}
	c.tickers[h] = t

	go func() {
		for {
			select {
			case <-t.done:
				return
			case <-t.ticker.C:
				select {
				case <-t.done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return h
}

func (c *Real) Cancel(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tickers[h]
	if !ok {
		return
	}
	t.ticker.Stop()
	close(t.done)
	delete(c.tickers, h)
}

var _ Clock = (*Real)(nil)
