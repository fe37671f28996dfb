package clock

import (
	"slices"
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/samber/lo"
)

// Mock is a manually driven Clock on top of a mock ticker clock.
// Callbacks run on the goroutine calling Advance.
type Mock struct {
	clock *bclock.Mock
	start time.Time

	mu        sync.Mutex
	next      Handle
	schedules map[Handle]*mockSchedule
}

type mockSchedule struct {
	interval time.Duration
	ticker   *bclock.Ticker
	fn       func()
}

func NewMock() *Mock {
	c := bclock.NewMock()
	return &Mock{
		clock:     c,
		start:     c.Now(),
		schedules: make(map[Handle]*mockSchedule),
	}
}

func (m *Mock) Schedule(interval time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if interval <= 0 {
		interval = time.Nanosecond
	}

	m.next++
	m.schedules[m.next] = &mockSchedule{
		interval: interval,
		ticker:   m.clock.Ticker(interval),
		fn:       fn,
	}
	return m.next
}

func (m *Mock) Cancel(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[h]
	if !ok {
		return
	}
	s.ticker.Stop()
	delete(m.schedules, h)
}

// Elapsed is the total time advanced since NewMock
func (m *Mock) Elapsed() time.Duration {
	return m.clock.Now().Sub(m.start)
}

// Pending is the number of active schedules
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}

// Advance moves the clock forward by d and runs every callback that falls due,
// including those due exactly at the new time. Callbacks may cancel or add schedules.
func (m *Mock) Advance(d time.Duration) {
	target := m.clock.Now().Add(d)
	for {
		now := m.clock.Now()
		if !now.Before(target) {
			return
		}
		// never step past the shortest interval so each ticker fires at most once per step
		step := target.Sub(now)
		m.mu.Lock()
		for _, s := range m.schedules {
			step = min(step, s.interval)
		}
		m.mu.Unlock()

		m.clock.Add(step)
		m.deliver()
	}
}

// deliver runs the callback of every schedule whose ticker fired during the last step
func (m *Mock) deliver() {
	m.mu.Lock()
	handles := lo.Keys(m.schedules)
	m.mu.Unlock()
	slices.Sort(handles)

	for _, h := range handles {
		m.mu.Lock()
		s, ok := m.schedules[h]
		m.mu.Unlock()
		if !ok {
			continue
		}

		select {
		case <-s.ticker.C:
		default:
			continue
		}

		// a previous callback in this step may have cancelled it
		m.mu.Lock()
		_, ok = m.schedules[h]
		m.mu.Unlock()
		if ok {
			s.fn()
		}
	}
}

var _ Clock = (*Mock)(nil)
