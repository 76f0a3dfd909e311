package veshell

import (
	"slices"
	"time"
)

/* Loop is the single-threaded reactor that owns every piece of mutable
 * compositor state. Other goroutines (client readers, the accept
 * goroutine, the UI engine's platform thread) only ever Post closures;
 * the loop goroutine runs them one at a time, so no core structure
 * needs a lock. */
type Loop struct {
	tasks chan func()
	quit  chan struct{}

	now    func() time.Time
	timers []*Timer
}

// Timer is a pending loop callback. Cancel is loop-affine.
type Timer struct {
	deadline  time.Time
	fn        func()
	cancelled bool
}

func (t *Timer) Cancel() { t.cancelled = true }

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
		now:   time.Now,
	}
}

// Post schedules f on the loop thread. Safe from any goroutine.
func (l *Loop) Post(f func()) {
	select {
	case l.tasks <- f:
	case <-l.quit:
	}
}

/* AddTimer schedules f after d. Loop-affine; timers posted from other
 * goroutines must go through Post first. */
func (l *Loop) AddTimer(d time.Duration, f func()) *Timer {
	t := &Timer{deadline: l.now().Add(d), fn: f}
	l.timers = append(l.timers, t)
	return t
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, t := range l.timers {
		if t.cancelled {
			continue
		}
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

/* fireDue runs every timer whose deadline has passed. Timer callbacks
 * may schedule new timers (key repeat does). */
func (l *Loop) fireDue() {
	now := l.now()
	for {
		fired := false
		for _, t := range l.timers {
			if !t.cancelled && !t.deadline.After(now) {
				t.cancelled = true
				t.fn()
				fired = true
			}
		}
		l.timers = slices.DeleteFunc(l.timers, func(t *Timer) bool { return t.cancelled })
		if !fired {
			return
		}
	}
}

// Run processes tasks and timers until Quit.
func (l *Loop) Run() {
	for {
		var timerC <-chan time.Time
		var tm *time.Timer
		if deadline, ok := l.nextDeadline(); ok {
			d := max(time.Until(deadline), 0)
			tm = time.NewTimer(d)
			timerC = tm.C
		}
		select {
		case f := <-l.tasks:
			f()
		case <-timerC:
			l.fireDue()
		case <-l.quit:
			if tm != nil {
				tm.Stop()
			}
			return
		}
		if tm != nil {
			tm.Stop()
		}
	}
}

func (l *Loop) Quit() {
	close(l.quit)
}
