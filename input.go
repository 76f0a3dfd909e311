package veshell

import (
	"fmt"
	"time"

	"github.com/roscale/veshell/platform"
	"github.com/roscale/veshell/proto"
)

/* UI-engine button codes to linux input event codes. */
var flutterToLinuxMouseButtons = map[int64]uint32{
	0x01: 0x110, /* kPrimaryButton   -> BTN_LEFT */
	0x02: 0x111, /* kSecondaryButton -> BTN_RIGHT */
	0x04: 0x112, /* kMiddleButton    -> BTN_MIDDLE */
	0x08: 0x113, /* kBackButton      -> BTN_SIDE */
	0x10: 0x114, /* kForwardButton   -> BTN_EXTRA */
}

/* handlePlatformMessage serves the engine → core RPCs. Runs on the
 * loop; replies are synchronous. */
func (s *Server) handlePlatformMessage(call platform.MethodCall, result platform.MethodResult) {
	now := s.nowMs()
	switch call.Method {
	case "pointer_hover":
		viewID := uint64(call.Int64("view_id"))
		x := call.Float64("x")
		y := call.Float64("y")

		surface, ok := s.surfaces[viewID]
		if !ok {
			result.Error("surface_doesnt_exist", fmt.Sprintf("Surface %d doesn't exist", viewID), nil)
			return
		}
		s.mouseX, s.mouseY = x, y
		s.surfaceIDUnderCursor = viewID
		s.pointer.Motion(surface, x, y, s.Display.NextSerial(), now)
		s.pointer.Frame()
		result.Success(nil)

	case "pointer_exit":
		s.surfaceIDUnderCursor = 0
		s.pointer.Motion(nil, 0, 0, s.Display.NextSerial(), now)
		s.pointer.Frame()
		result.Success(nil)

	case "mouse_button_event":
		button := call.Int64("button")
		pressed := call.Bool("is_pressed")
		linux, ok := flutterToLinuxMouseButtons[button]
		if !ok {
			result.Error("unknown_button", fmt.Sprintf("Button %#x has no mapping", button), nil)
			return
		}
		s.pointer.Button(linux, pressed, s.Display.NextSerial(), now)
		s.pointer.Frame()
		result.Success(nil)

	case "activate_window":
		viewID := uint64(call.Int64("view_id"))
		activate := call.Bool("activate")

		toplevel, ok := s.toplevels[viewID]
		if !ok {
			result.Error("surface_doesnt_exist", fmt.Sprintf("Surface %d doesn't exist", viewID), nil)
			return
		}
		toplevel.WithPendingState(func(state *proto.ToplevelState) {
			if activate {
				state.States.Set(proto.StateActivated)
			} else {
				state.States.Unset(proto.StateActivated)
			}
		})
		toplevel.SendConfigure()
		if activate {
			s.keyboard.SetFocus(toplevel.Surface(), s.Display.NextSerial())
		}
		result.Success(nil)

	default:
		result.Success(nil)
	}
}

/* HandleKeyEvent is the entry point for backend keyboard events. The
 * intercept updates modifier bookkeeping, the engine arbitrates, and
 * onHandledKeyEvent finishes the flow when the verdict lands. */
func (s *Server) HandleKeyEvent(keyCode uint32, pressed bool, timeMs uint32) {
	mods, codepoint, modsChanged := s.keyboard.InputIntercept(keyCode, pressed)

	s.engine.SendKeyEvent(KeyEvent{
		KeyCode:     keyCode,
		Codepoint:   codepoint,
		Pressed:     pressed,
		TimeMs:      timeMs,
		Mods:        mods,
		ModsChanged: modsChanged,
	}, s.handledKeyEvents)

	/* modifier keys do nothing on their own, so they never repeat */
	if !modsChanged {
		if pressed {
			s.keyRepeater.Down(keyCode, codepoint, s.repeatDelay, s.repeatRate)
		} else {
			s.keyRepeater.Up(keyCode)
		}
	}
}

/* onHandledKeyEvent resumes a key event once the engine has spoken.
 * Engine shortcuts stop here; an active text input swallows everything
 * else; only then does the focused client see the event. */
func (s *Server) onHandledKeyEvent(h HandledKeyEvent) {
	if h.Handled {
		/* the engine consumed it, probably a shortcut */
		return
	}

	if textInput := s.engine.TextInput(); textInput != nil && textInput.Active() {
		if h.Event.Pressed && !h.Event.Mods.Ctrl && !h.Event.Mods.Alt {
			textInput.PressKey(h.Event.KeyCode, h.Event.Codepoint)
		}
		/* whether or not the field captured it, an active text input
		 * means no wayland forwarding */
		return
	}

	s.keyboard.InputForward(h.Event.KeyCode, h.Event.Pressed,
		s.Display.NextSerial(), h.Event.TimeMs, h.Event.ModsChanged)
}

/* repeatKey is the repeater callback: synthesize a press with the live
 * modifier state and wall-clock timestamp, and let the engine
 * arbitrate it like any other press. */
func (s *Server) repeatKey(keyCode uint32, codepoint rune) {
	s.engine.SendKeyEvent(KeyEvent{
		KeyCode:   keyCode,
		Codepoint: codepoint,
		Pressed:   true,
		TimeMs:    uint32(time.Now().UnixMilli()),
		Mods:      s.keyboard.ModifierState(),
	}, s.handledKeyEvents)
}
