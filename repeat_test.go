package veshell

import (
	"slices"
	"testing"
	"time"
)

/* Repeat timing, driven by a synthetic clock: presses repeat at
 * delay, delay+rate, delay+2*rate, ... until release. */
func TestKeyRepeatTiming(t *testing.T) {
	loop := NewLoop()
	epoch := time.Unix(0, 0)
	now := epoch
	loop.now = func() time.Time { return now }

	var fired []time.Duration
	r := NewKeyRepeater(loop, func(keyCode uint32, codepoint rune) {
		if keyCode != 30 || codepoint != 'a' {
			t.Fatalf("repeat of %d %q", keyCode, codepoint)
		}
		fired = append(fired, now.Sub(epoch))
	})

	r.Down(30, 'a', 200*time.Millisecond, 50*time.Millisecond)
	for ms := 0; ms <= 410; ms += 10 {
		now = epoch.Add(time.Duration(ms) * time.Millisecond)
		loop.fireDue()
	}
	r.Up(30)
	now = epoch.Add(2 * time.Second)
	loop.fireDue()

	var want []time.Duration
	for ms := 200; ms <= 410; ms += 50 {
		want = append(want, time.Duration(ms)*time.Millisecond)
	}
	if !slices.Equal(fired, want) {
		t.Fatalf("repeat times = %v, want %v", fired, want)
	}
}

func TestKeyRepeatReleaseBeforeDelay(t *testing.T) {
	loop := NewLoop()
	epoch := time.Unix(0, 0)
	now := epoch
	loop.now = func() time.Time { return now }

	fired := 0
	r := NewKeyRepeater(loop, func(uint32, rune) { fired++ })

	r.Down(30, 'a', 200*time.Millisecond, 50*time.Millisecond)
	now = epoch.Add(150 * time.Millisecond)
	loop.fireDue()
	r.Up(30)
	now = epoch.Add(5 * time.Second)
	loop.fireDue()

	if fired != 0 {
		t.Fatalf("repeated %d times before the delay elapsed", fired)
	}
}

/* Modifier-only events never arm the repeater. */
func TestModifierKeysNeverRepeat(t *testing.T) {
	server, _ := newTestServer(t)

	press := func(code uint32, down bool) {
		onLoop(t, server, func() { server.HandleKeyEvent(code, down, 0) })
	}
	timerCount := func() int {
		n := 0
		onLoop(t, server, func() { n = len(server.keyRepeater.timers) })
		return n
	}

	press(42, true) /* left shift */
	if n := timerCount(); n != 0 {
		t.Fatalf("%d repeat timers after shift press", n)
	}
	press(30, true) /* 'a' */
	if n := timerCount(); n != 1 {
		t.Fatalf("%d repeat timers after letter press", n)
	}
	press(30, false)
	if n := timerCount(); n != 0 {
		t.Fatalf("%d repeat timers after release", n)
	}
	press(42, false)
	if n := timerCount(); n != 0 {
		t.Fatalf("%d repeat timers after shift release", n)
	}
}

/* Runtime repeat changes reach both the repeater parameters and the
 * wl_keyboard repeat-info clients see. */
func TestRepeatInfoPropagation(t *testing.T) {
	server, _ := newTestServer(t)
	c := dialWayland(t, server)
	c.getKeyboard()
	c.waitFor(c.keyboard, 5) /* initial repeat_info */

	onLoop(t, server, func() { server.ChangeKeyboardRepeatInfo(600, 25) })

	ev := c.waitFor(c.keyboard, 5)
	rate := int32(tle.Uint32(ev.data[0:4]))
	delay := int32(tle.Uint32(ev.data[4:8]))
	if rate != 40 || delay != 600 {
		t.Fatalf("repeat_info rate=%d delay=%d, want 40/600", rate, delay)
	}

	onLoop(t, server, func() {
		if server.repeatDelay != 600*time.Millisecond || server.repeatRate != 25*time.Millisecond {
			t.Errorf("repeater params = %v/%v", server.repeatDelay, server.repeatRate)
		}
	})
}
