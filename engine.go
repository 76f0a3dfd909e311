package veshell

import (
	"github.com/roscale/veshell/platform"
	"github.com/roscale/veshell/proto"
)

// KeyEvent is one keyboard event after the intercept stage.
type KeyEvent struct {
	KeyCode     uint32
	Codepoint   rune
	Pressed     bool
	TimeMs      uint32
	Mods        proto.Modifiers
	ModsChanged bool
}

// HandledKeyEvent is the UI engine's verdict on a key event.
type HandledKeyEvent struct {
	Event   KeyEvent
	Handled bool
}

/* TextInput is the engine-side text field state. While a field is
 * active the compositor feeds it plain keypresses and withholds all
 * keyboard traffic from Wayland clients. */
type TextInput interface {
	Active() bool
	PressKey(keyCode uint32, codepoint rune)
}

/* Engine is the narrow contract the core consumes from the UI engine.
 * Everything behind it (renderer handoff, dart-side dispatch, vsync)
 * is the embedding's business. */
type Engine interface {
	// Messenger transports method channels both ways.
	Messenger() platform.BinaryMessenger

	// RegisterExternalTexture announces a texture id the engine may
	// sample through its external-texture callback.
	RegisterExternalTexture(textureID int64) error

	// MarkTextureFrameAvailable schedules a resample of the texture's
	// swap chain.
	MarkTextureFrameAvailable(textureID int64) error

	/* SendKeyEvent asks the engine whether it consumes the event. The
	 * verdict arrives on reply, which the core drains on its loop. */
	SendKeyEvent(ev KeyEvent, reply chan<- HandledKeyEvent)

	TextInput() TextInput

	// SetEnvironmentVariable publishes a variable to processes the
	// engine spawns; nil unsets.
	SetEnvironmentVariable(name string, value *string)
}
