package proto

import "testing"

func TestModifierTracking(t *testing.T) {
	kb := &Keyboard{pressed: make(map[uint32]struct{})}

	mods, cp, changed := kb.InputIntercept(keyLeftShift, true)
	if !changed || !mods.Shift || cp != 0 {
		t.Fatalf("shift press: mods=%+v cp=%q changed=%v", mods, cp, changed)
	}

	mods, cp, changed = kb.InputIntercept(30, true) /* 'a' */
	if changed || cp != 'A' {
		t.Fatalf("shifted letter: cp=%q changed=%v", cp, changed)
	}
	kb.InputIntercept(30, false)

	mods, cp, changed = kb.InputIntercept(keyLeftShift, false)
	if !changed || mods.Shift {
		t.Fatalf("shift release: mods=%+v changed=%v", mods, changed)
	}

	mods, cp, _ = kb.InputIntercept(30, true)
	if cp != 'a' {
		t.Fatalf("plain letter = %q", cp)
	}
}

func TestCapsLockLatches(t *testing.T) {
	kb := &Keyboard{pressed: make(map[uint32]struct{})}

	kb.InputIntercept(keyCapsLock, true)
	kb.InputIntercept(keyCapsLock, false)

	if _, cp, _ := kb.InputIntercept(30, true); cp != 'A' {
		t.Fatalf("caps-locked letter = %q", cp)
	}
	kb.InputIntercept(30, false)

	/* caps lock upcases letters but leaves symbol rows alone */
	if _, cp, _ := kb.InputIntercept(2, true); cp != '1' {
		t.Fatalf("caps-locked digit = %q", cp)
	}
}

func TestPressedKeysTracked(t *testing.T) {
	kb := &Keyboard{pressed: make(map[uint32]struct{})}
	kb.InputIntercept(30, true)
	kb.InputIntercept(31, true)
	kb.InputIntercept(30, false)
	keys := kb.PressedKeys()
	if len(keys) != 1 || keys[0] != 31 {
		t.Fatalf("pressed = %v", keys)
	}
}
