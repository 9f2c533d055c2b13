package core

// Key code definitions
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_SHIFT     KeyCode = 0x10
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_A         KeyCode = 0x41
	KEY_B         KeyCode = 0x42
	KEY_C         KeyCode = 0x43
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_F         KeyCode = 0x46
	KEY_G         KeyCode = 0x47
	KEY_H         KeyCode = 0x48
	KEY_I         KeyCode = 0x49
	KEY_J         KeyCode = 0x4A
	KEY_K         KeyCode = 0x4B
	KEY_L         KeyCode = 0x4C
	KEY_M         KeyCode = 0x4D
	KEY_N         KeyCode = 0x4E
	KEY_O         KeyCode = 0x4F
	KEY_P         KeyCode = 0x50
	KEY_Q         KeyCode = 0x51
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_T         KeyCode = 0x54
	KEY_U         KeyCode = 0x55
	KEY_V         KeyCode = 0x56
	KEY_W         KeyCode = 0x57
	KEY_X         KeyCode = 0x58
	KEY_Y         KeyCode = 0x59
	KEY_Z         KeyCode = 0x5A
	KEY_F1        KeyCode = 0x70
	KEY_F2        KeyCode = 0x71
	KEY_F3        KeyCode = 0x72
	KEY_F4        KeyCode = 0x73
	KEY_F5        KeyCode = 0x74
	KEY_LSHIFT    KeyCode = 0xA0
	KEY_RSHIFT    KeyCode = 0xA1
	KEY_LCONTROL  KeyCode = 0xA2
	KEY_RCONTROL  KeyCode = 0xA3
	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// InputState holds the current and previous keyboard state. Key changes
// are forwarded to the event system when one is attached.
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState

	events *EventSystem
}

func NewInputState(events *EventSystem) *InputState {
	return &InputState{events: events}
}

// Update copies current states to previous states. Call once per frame
// after all input for the frame has been processed.
func (is *InputState) Update() {
	is.KeyboardPrevious = is.KeyboardCurrent
}

func (is *InputState) IsKeyDown(key KeyCode) bool {
	return is.KeyboardCurrent.Keys[key]
}

func (is *InputState) IsKeyUp(key KeyCode) bool {
	return !is.KeyboardCurrent.Keys[key]
}

func (is *InputState) WasKeyDown(key KeyCode) bool {
	return is.KeyboardPrevious.Keys[key]
}

func (is *InputState) WasKeyUp(key KeyCode) bool {
	return !is.KeyboardPrevious.Keys[key]
}

func (is *InputState) ProcessKey(key KeyCode, pressed bool) {
	// Only handle this if the state actually changed.
	if is.KeyboardCurrent.Keys[key] == pressed {
		return
	}
	is.KeyboardCurrent.Keys[key] = pressed

	if is.events == nil {
		return
	}
	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(key)
	is.events.Fire(code, nil, ctx)
}
