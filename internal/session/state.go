package session

import "fmt"

// State is the lifecycle position of a plugin session.
type State int32

const (
	StateUnloaded State = iota
	StateLoaded
	StateInitialized
	StateConfigured
	StateActive
	StateEditorOpen
)

var stateNames = [...]string{
	StateUnloaded:    "unloaded",
	StateLoaded:      "loaded",
	StateInitialized: "initialized",
	StateConfigured:  "configured",
	StateActive:      "active",
	StateEditorOpen:  "editor_open",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// CanProcess reports whether the plugin may be asked to render audio.
func (s State) CanProcess() bool {
	return s == StateActive || s == StateEditorOpen
}

// CanDispatch reports whether opcode dispatch is allowed.
func (s State) CanDispatch() bool {
	return s >= StateLoaded
}
