// Package clock provides a controllable time source so the autonomy,
// batch, and speech-gate timers can be driven deterministically in
// tests instead of through wall-clock sleeps.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source every timer-owning component depends on.
// Production code gets the wall clock from New; tests supply a
// FakeClock from NewFake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
	Sleep(d time.Duration)
}

// Timer mirrors time.Timer but can be backed by a fake clock.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker mirrors time.Ticker but can be backed by a fake clock.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realClock struct {
	clockwork.Clock
}

// New returns the real, wall-clock-backed implementation of Clock.
func New() Clock {
	return realClock{clockwork.NewRealClock()}
}

func (r realClock) After(d time.Duration) <-chan time.Time {
	return r.Clock.After(d)
}

func (r realClock) NewTimer(d time.Duration) Timer {
	return realTimer{r.Clock.NewTimer(d)}
}

func (r realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{r.Clock.NewTicker(d)}
}

type realTimer struct {
	clockwork.Timer
}

func (t realTimer) Chan() <-chan time.Time { return t.Timer.Chan() }

type realTicker struct {
	clockwork.Ticker
}

func (t realTicker) Chan() <-chan time.Time { return t.Ticker.Chan() }
func (t realTicker) Stop()                  { t.Ticker.Stop() }

// NewFake returns a FakeClock for tests; advancing it fires any timers
// or tickers whose deadline has passed.
func NewFake() FakeClock {
	return FakeClock{clockwork.NewFakeClock()}
}

// FakeClock wraps clockwork's fake clock behind the Clock interface
// plus an Advance helper for tests.
type FakeClock struct {
	*clockwork.FakeClock
}

func (f FakeClock) After(d time.Duration) <-chan time.Time {
	return f.FakeClock.After(d)
}

func (f FakeClock) NewTimer(d time.Duration) Timer {
	return realTimer{f.FakeClock.NewTimer(d)}
}

func (f FakeClock) NewTicker(d time.Duration) Ticker {
	return realTicker{f.FakeClock.NewTicker(d)}
}

// Advance moves the fake clock forward by d, firing any due timers.
func (f FakeClock) Advance(d time.Duration) {
	f.FakeClock.Advance(d)
}
