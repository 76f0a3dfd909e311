package veshell

import "time"

/* KeyRepeater re-injects held non-modifier keys: first after the
 * repeat delay, then at the repeat rate, until the key is released or
 * everything is cancelled on focus loss. One timer per key code, all
 * on the loop. */
type KeyRepeater struct {
	loop   *Loop
	repeat func(keyCode uint32, codepoint rune)
	timers map[uint32]*Timer
}

func NewKeyRepeater(loop *Loop, repeat func(keyCode uint32, codepoint rune)) *KeyRepeater {
	return &KeyRepeater{
		loop:   loop,
		repeat: repeat,
		timers: make(map[uint32]*Timer),
	}
}

/* Down arms the repeat chain for a pressed key, replacing any earlier
 * chain for the same code. */
func (r *KeyRepeater) Down(keyCode uint32, codepoint rune, delay, rate time.Duration) {
	r.Up(keyCode)
	var schedule func(d time.Duration)
	schedule = func(d time.Duration) {
		r.timers[keyCode] = r.loop.AddTimer(d, func() {
			r.repeat(keyCode, codepoint)
			schedule(rate)
		})
	}
	schedule(delay)
}

// Up cancels the chain for a released key.
func (r *KeyRepeater) Up(keyCode uint32) {
	if t, ok := r.timers[keyCode]; ok {
		t.Cancel()
		delete(r.timers, keyCode)
	}
}

// CancelAll stops every chain, used on keyboard focus loss.
func (r *KeyRepeater) CancelAll() {
	for code, t := range r.timers {
		t.Cancel()
		delete(r.timers, code)
	}
}
