package inactivity_test

import (
	"sync"
	"testing"
	"time"

	"feedreader/clock"
	"feedreader/feeds"
	"feedreader/inactivity"

	"github.com/stretchr/testify/assert"
)

type spyLoader struct {
	mu     sync.Mutex
	length int
	calls  []int
}

func (l *spyLoader) Len() int {
	return l.length
}

func (l *spyLoader) LoadFeed(index int, done func(error)) (*feeds.Load, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, index)
	return nil, nil
}

func (l *spyLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func TestTimerCyclesToFirstFeed(t *testing.T) {
	mock := clock.NewMock()
	loader := &spyLoader{length: 3}
	timer := inactivity.New(mock, 15*time.Second, loader)

	assert.NoError(t, timer.Install())
	mock.Advance(60 * time.Second)

	assert.Equal(t, []int{0, 0, 0, 0}, loader.calls)
}

func TestTimerDefaultPeriod(t *testing.T) {
	timer := inactivity.New(clock.NewMock(), 0, &spyLoader{length: 1})
	assert.Equal(t, inactivity.DefaultPeriod, timer.Period())
}

func TestTimerResetRestartsCountdown(t *testing.T) {
	mock := clock.NewMock()
	loader := &spyLoader{length: 2}
	timer := inactivity.New(mock, 15*time.Second, loader)
	assert.NoError(t, timer.Install())

	mock.Advance(10 * time.Second)
	timer.Reset()
	mock.Advance(10 * time.Second)
	assert.Equal(t, 0, loader.count(), "reset pushed the deadline to 25s")

	mock.Advance(5 * time.Second)
	assert.Equal(t, 1, loader.count())

	mock.Advance(15 * time.Second)
	assert.Equal(t, 2, loader.count())
}

func TestTimerInstallUninstallCycles(t *testing.T) {
	mock := clock.NewMock()
	loader := &spyLoader{length: 2}
	timer := inactivity.New(mock, 15*time.Second, loader)

	// uninstalling before install is harmless
	timer.Uninstall()
	timer.Reset()
	assert.False(t, timer.Installed())

	assert.NoError(t, timer.Install())
	assert.NoError(t, timer.Install())
	assert.True(t, timer.Installed())
	assert.Equal(t, 1, mock.Pending(), "double install must not double the rate")

	mock.Advance(30 * time.Second)
	assert.Equal(t, 2, loader.count())

	timer.Uninstall()
	timer.Uninstall()
	mock.Advance(60 * time.Second)
	assert.Equal(t, 2, loader.count(), "no callbacks after uninstall")
	assert.Equal(t, 0, mock.Pending())

	assert.NoError(t, timer.Install())
	mock.Advance(15 * time.Second)
	assert.Equal(t, 3, loader.count())
}

func TestTimerRefusesEmptyCollection(t *testing.T) {
	mock := clock.NewMock()
	timer := inactivity.New(mock, time.Second, &spyLoader{length: 0})

	assert.ErrorIs(t, timer.Install(), feeds.ErrEmptyCollection)
	assert.False(t, timer.Installed())
	assert.Equal(t, 0, mock.Pending())
}

// lateClock keeps every callback it was given, so a test can deliver a tick
// after its schedule was cancelled, as a wall clock ticker may.
type lateClock struct {
	mu        sync.Mutex
	callbacks []func()
}

func (c *lateClock) Schedule(_ time.Duration, fn func()) clock.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
	return clock.Handle(len(c.callbacks))
}

func (c *lateClock) Cancel(clock.Handle) {}

func (c *lateClock) fire(i int) {
	c.mu.Lock()
	fn := c.callbacks[i]
	c.mu.Unlock()
	fn()
}

func TestTimerIgnoresTicksAfterCancel(t *testing.T) {
	late := &lateClock{}
	loader := &spyLoader{length: 2}
	timer := inactivity.New(late, 15*time.Second, loader)

	assert.NoError(t, timer.Install())
	late.fire(0)
	assert.Equal(t, 1, loader.count())

	// reset replaces the schedule, the old one must stay silent
	timer.Reset()
	late.fire(0)
	assert.Equal(t, 1, loader.count())
	late.fire(1)
	assert.Equal(t, 2, loader.count())

	timer.Uninstall()
	late.fire(1)
	assert.Equal(t, 2, loader.count(), "no load once uninstalled")

	// reinstalling does not revive earlier schedules
	assert.NoError(t, timer.Install())
	late.fire(0)
	late.fire(1)
	assert.Equal(t, 2, loader.count())
	late.fire(2)
	assert.Equal(t, 3, loader.count())
}
