package proto

import (
	"sync"

	"golang.org/x/sys/unix"
)

/* Minimal evdev handling for a US layout. A real keymap service would
 * hand out an xkb keymap fd; here clients get the no-keymap format and
 * the compositor resolves codepoints from this table, which is all the
 * UI engine's text input needs. */

const (
	keyLeftCtrl   = 29
	keyLeftShift  = 42
	keyRightShift = 54
	keyLeftAlt    = 56
	keyCapsLock   = 58
	keyRightCtrl  = 97
	keyRightAlt   = 100
	keyLeftMeta   = 125
	keyRightMeta  = 126
)

func isModifierKey(keycode uint32) bool {
	switch keycode {
	case keyLeftCtrl, keyRightCtrl, keyLeftShift, keyRightShift,
		keyLeftAlt, keyRightAlt, keyLeftMeta, keyRightMeta, keyCapsLock:
		return true
	}
	return false
}

/* updateModifiers folds one key event into the modifier state and
 * reports whether anything changed. */
func (kb *Keyboard) updateModifiers(keycode uint32, pressed bool) bool {
	old := kb.mods
	switch keycode {
	case keyLeftCtrl, keyRightCtrl:
		kb.mods.Ctrl = pressed
	case keyLeftShift, keyRightShift:
		kb.mods.Shift = pressed
	case keyLeftAlt, keyRightAlt:
		kb.mods.Alt = pressed
	case keyLeftMeta, keyRightMeta:
		kb.mods.Logo = pressed
	case keyCapsLock:
		if pressed {
			kb.mods.CapsLock = !kb.mods.CapsLock
		}
	default:
		return false
	}
	return kb.mods != old
}

type keysymPair struct {
	plain, shifted rune
}

var keysymTable = map[uint32]keysymPair{
	2: {'1', '!'}, 3: {'2', '@'}, 4: {'3', '#'}, 5: {'4', '$'},
	6: {'5', '%'}, 7: {'6', '^'}, 8: {'7', '&'}, 9: {'8', '*'},
	10: {'9', '('}, 11: {'0', ')'}, 12: {'-', '_'}, 13: {'=', '+'},
	15: {'\t', '\t'},
	16: {'q', 'Q'}, 17: {'w', 'W'}, 18: {'e', 'E'}, 19: {'r', 'R'},
	20: {'t', 'T'}, 21: {'y', 'Y'}, 22: {'u', 'U'}, 23: {'i', 'I'},
	24: {'o', 'O'}, 25: {'p', 'P'}, 26: {'[', '{'}, 27: {']', '}'},
	28: {'\n', '\n'},
	30: {'a', 'A'}, 31: {'s', 'S'}, 32: {'d', 'D'}, 33: {'f', 'F'},
	34: {'g', 'G'}, 35: {'h', 'H'}, 36: {'j', 'J'}, 37: {'k', 'K'},
	38: {'l', 'L'}, 39: {';', ':'}, 40: {'\'', '"'}, 41: {'`', '~'},
	43: {'\\', '|'},
	44: {'z', 'Z'}, 45: {'x', 'X'}, 46: {'c', 'C'}, 47: {'v', 'V'},
	48: {'b', 'B'}, 49: {'n', 'N'}, 50: {'m', 'M'}, 51: {',', '<'},
	52: {'.', '>'}, 53: {'/', '?'},
	57: {' ', ' '},
}

/* keysymChar resolves the typed codepoint, 0 when the key produces
 * none. Caps lock upcases letters only. */
func keysymChar(keycode uint32, mods Modifiers) rune {
	pair, ok := keysymTable[keycode]
	if !ok {
		return 0
	}
	upper := mods.Shift
	if mods.CapsLock && pair.plain >= 'a' && pair.plain <= 'z' {
		upper = !upper
	}
	if upper {
		return pair.shifted
	}
	return pair.plain
}

var devNull struct {
	once sync.Once
	fd   int
}

/* devNullFd backs the no-keymap wl_keyboard.keymap event, which still
 * carries an fd on the wire. */
func devNullFd() int {
	devNull.once.Do(func() {
		fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			fd = -1
		}
		devNull.fd = fd
	})
	return devNull.fd
}
