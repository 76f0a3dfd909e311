package proto

import (
	"fmt"
)

const (
	seatCapPointer  = 1
	seatCapKeyboard = 2
)

/* Seat is the single wl_seat. Keyboard and pointer state is shared by
 * every bound resource; events go to the resources of the focused
 * surface's client. */
type Seat struct {
	display *Display
	name    string

	keyboard *Keyboard
	pointer  *Pointer
}

func newSeat(d *Display) *Seat {
	s := &Seat{display: d, name: "seat-0"}
	s.keyboard = &Keyboard{
		seat:      s,
		resources: make(map[*Client][]uint32),
		pressed:   make(map[uint32]struct{}),
	}
	s.pointer = &Pointer{
		seat:      s,
		resources: make(map[*Client][]uint32),
	}
	return s
}

func (s *Seat) Keyboard() *Keyboard { return s.keyboard }
func (s *Seat) Pointer() *Pointer   { return s.pointer }

type seatObject struct {
	id uint32
}

func (so *seatObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	seat := c.display.Seat()
	switch opcode {
	case 0: /* get_pointer */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		if err := c.register(id, &pointerObject{id: id}); err != nil {
			return err
		}
		seat.pointer.resources[c] = append(seat.pointer.resources[c], id)
	case 1: /* get_keyboard */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		if err := c.register(id, &keyboardObject{id: id}); err != nil {
			return err
		}
		kb := seat.keyboard
		kb.resources[c] = append(kb.resources[c], id)
		/* no server-side xkb: clients get the no-keymap format and the
		 * current repeat parameters up front */
		w := &argWriter{}
		w.Uint32(0 /* no_keymap */).Fd(devNullFd()).Uint32(0)
		c.send(id, 0, w)
		kb.sendRepeatInfoTo(c, id)
	case 2: /* get_touch */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, inertObject{})
	case 3: /* release */
		c.unregister(so.id)
	default:
		return fmt.Errorf("wl_seat: bad opcode %d", opcode)
	}
	return nil
}

type pointerObject struct{ id uint32 }

func (p *pointerObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* set_cursor: cursor policy belongs to the UI engine */
	case 1: /* release */
		c.unregister(p.id)
		removeResource(c.display.Seat().pointer.resources, c, p.id)
	default:
		return fmt.Errorf("wl_pointer: bad opcode %d", opcode)
	}
	return nil
}

type keyboardObject struct{ id uint32 }

func (k *keyboardObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* release */
		c.unregister(k.id)
		removeResource(c.display.Seat().keyboard.resources, c, k.id)
	default:
		return fmt.Errorf("wl_keyboard: bad opcode %d", opcode)
	}
	return nil
}

func removeResource(m map[*Client][]uint32, c *Client, id uint32) {
	ids := m[c]
	for i, v := range ids {
		if v == id {
			m[c] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

/* Keyboard */

// Modifiers is the decoded modifier state fed back to the core on
// every intercepted key event.
type Modifiers struct {
	Shift    bool
	Ctrl     bool
	Alt      bool
	Logo     bool
	CapsLock bool
}

func (m Modifiers) depressed() uint32 {
	var v uint32
	if m.Shift {
		v |= 1 << 0
	}
	if m.Ctrl {
		v |= 1 << 2
	}
	if m.Alt {
		v |= 1 << 3
	}
	if m.Logo {
		v |= 1 << 6
	}
	return v
}

func (m Modifiers) locked() uint32 {
	if m.CapsLock {
		return 1 << 1
	}
	return 0
}

type Keyboard struct {
	seat      *Seat
	resources map[*Client][]uint32

	focus   *Surface
	pressed map[uint32]struct{}
	mods    Modifiers

	repeatDelayMs int32
	repeatRateMs  int32

	// OnFocusChanged lets the core react to focus moves (selection
	// device focus follows the keyboard).
	OnFocusChanged func(*Surface)
}

func (kb *Keyboard) Focus() *Surface { return kb.focus }

func (kb *Keyboard) ModifierState() Modifiers { return kb.mods }

func (kb *Keyboard) PressedKeys() []uint32 {
	keys := make([]uint32, 0, len(kb.pressed))
	for k := range kb.pressed {
		keys = append(keys, k)
	}
	return keys
}

/* InputIntercept updates the tracked keyboard state for one event and
 * reports the modifier state, the typed codepoint, and whether this
 * event was a modifier change. Nothing is forwarded yet. */
func (kb *Keyboard) InputIntercept(keycode uint32, pressed bool) (Modifiers, rune, bool) {
	if pressed {
		kb.pressed[keycode] = struct{}{}
	} else {
		delete(kb.pressed, keycode)
	}
	modsChanged := kb.updateModifiers(keycode, pressed)
	cp := keysymChar(keycode, kb.mods)
	return kb.mods, cp, modsChanged
}

/* InputForward delivers the event to the focused client. Modifier-only
 * changes go out as wl_keyboard.modifiers, key events as key + the
 * current modifier state when it changed alongside. */
func (kb *Keyboard) InputForward(keycode uint32, pressed bool, serial, timeMs uint32, modsChanged bool) {
	if kb.focus == nil || kb.focus.Destroyed() {
		return
	}
	c := kb.focus.client
	if modsChanged {
		kb.sendModifiers(c, serial)
	}
	if isModifierKey(keycode) {
		return
	}
	state := uint32(0)
	if pressed {
		state = 1
	}
	for _, id := range kb.resources[c] {
		w := &argWriter{}
		w.Uint32(serial).Uint32(timeMs).Uint32(keycode).Uint32(state)
		c.send(id, 3, w)
	}
}

/* SetFocus moves keyboard focus, emitting leave and enter with the
 * held keys and modifier state. */
func (kb *Keyboard) SetFocus(target *Surface, serial uint32) {
	if kb.focus == target {
		return
	}
	if kb.focus != nil && !kb.focus.Destroyed() {
		c := kb.focus.client
		for _, id := range kb.resources[c] {
			w := &argWriter{}
			w.Uint32(serial).Uint32(kb.focus.id)
			c.send(id, 2, w)
		}
	}
	kb.focus = target
	if target != nil {
		c := target.client
		for _, id := range kb.resources[c] {
			w := &argWriter{}
			w.Uint32(serial).Uint32(target.id)
			w.Uint32Array(kb.PressedKeys())
			c.send(id, 1, w)
		}
		kb.sendModifiers(c, serial)
	}
	if kb.OnFocusChanged != nil {
		kb.OnFocusChanged(target)
	}
}

func (kb *Keyboard) sendModifiers(c *Client, serial uint32) {
	for _, id := range kb.resources[c] {
		w := &argWriter{}
		w.Uint32(serial).Uint32(kb.mods.depressed()).Uint32(0).Uint32(kb.mods.locked()).Uint32(0)
		c.send(id, 4, w)
	}
}

/* ChangeRepeatInfo updates the advertised server-side repeat values so
 * clients that repeat locally agree with the software repeater. Both
 * parameters are in milliseconds. */
func (kb *Keyboard) ChangeRepeatInfo(delayMs, rateMs int32) {
	kb.repeatDelayMs = delayMs
	kb.repeatRateMs = rateMs
	for c, ids := range kb.resources {
		for _, id := range ids {
			kb.sendRepeatInfoTo(c, id)
		}
	}
}

func (kb *Keyboard) sendRepeatInfoTo(c *Client, id uint32) {
	rate := int32(0)
	if kb.repeatRateMs > 0 {
		rate = 1000 / kb.repeatRateMs /* wire unit is keys per second */
	}
	w := &argWriter{}
	w.Int32(rate).Int32(kb.repeatDelayMs)
	c.send(id, 5, w)
}

/* Pointer */

type Pointer struct {
	seat      *Seat
	resources map[*Client][]uint32

	focus *Surface
}

func (p *Pointer) Focus() *Surface { return p.focus }

/* Motion delivers pointer motion over target in surface-local logical
 * coordinates, handling enter/leave against the current focus. A nil
 * target clears focus. */
func (p *Pointer) Motion(target *Surface, x, y float64, serial, timeMs uint32) {
	if p.focus != target {
		if p.focus != nil && !p.focus.Destroyed() {
			c := p.focus.client
			for _, id := range p.resources[c] {
				w := &argWriter{}
				w.Uint32(serial).Uint32(p.focus.id)
				c.send(id, 1, w)
			}
		}
		p.focus = target
		if target != nil {
			c := target.client
			for _, id := range p.resources[c] {
				w := &argWriter{}
				w.Uint32(serial).Uint32(target.id)
				w.Fixed(FixedFromFloat(x)).Fixed(FixedFromFloat(y))
				c.send(id, 0, w)
			}
		}
		return
	}
	if target == nil {
		return
	}
	c := target.client
	for _, id := range p.resources[c] {
		w := &argWriter{}
		w.Uint32(timeMs).Fixed(FixedFromFloat(x)).Fixed(FixedFromFloat(y))
		c.send(id, 2, w)
	}
}

// Button delivers a button event to the focused surface.
func (p *Pointer) Button(button uint32, pressed bool, serial, timeMs uint32) {
	if p.focus == nil || p.focus.Destroyed() {
		return
	}
	state := uint32(0)
	if pressed {
		state = 1
	}
	c := p.focus.client
	for _, id := range p.resources[c] {
		w := &argWriter{}
		w.Uint32(serial).Uint32(timeMs).Uint32(button).Uint32(state)
		c.send(id, 3, w)
	}
}

// Frame groups the preceding pointer events.
func (p *Pointer) Frame() {
	if p.focus == nil || p.focus.Destroyed() {
		return
	}
	c := p.focus.client
	for _, id := range p.resources[c] {
		c.send(id, 5, nil)
	}
}
