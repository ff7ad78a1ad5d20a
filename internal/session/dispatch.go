package session

import (
	"fmt"

	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

// Opcode names a dispatch request variant.
type Opcode int

const (
	OpGetEditorRect Opcode = iota + 1
	OpEditorOpen
	OpEditorClose
	OpEditorIdle
	OpGetVendorVersion
	OpCanDo
)

func (o Opcode) String() string {
	switch o {
	case OpGetEditorRect:
		return "editor_get_rect"
	case OpEditorOpen:
		return "editor_open"
	case OpEditorClose:
		return "editor_close"
	case OpEditorIdle:
		return "editor_idle"
	case OpGetVendorVersion:
		return "get_vendor_version"
	case OpCanDo:
		return "can_do"
	default:
		return fmt.Sprintf("opcode(%d)", int(o))
	}
}

// Request is a typed dispatch call. Each variant has exactly one Response type.
type Request interface {
	Opcode() Opcode
}

// Response is the typed result of a Request.
type Response interface {
	Opcode() Opcode
}

// Requests
type (
	GetEditorRect    struct{}
	EditorOpen       struct{ Parent window.NativeHandle }
	EditorClose      struct{}
	EditorIdle       struct{}
	GetVendorVersion struct{}
	CanDo            struct{ Feature string }
)

func (GetEditorRect) Opcode() Opcode    { return OpGetEditorRect }
func (EditorOpen) Opcode() Opcode       { return OpEditorOpen }
func (EditorClose) Opcode() Opcode      { return OpEditorClose }
func (EditorIdle) Opcode() Opcode       { return OpEditorIdle }
func (GetVendorVersion) Opcode() Opcode { return OpGetVendorVersion }
func (CanDo) Opcode() Opcode            { return OpCanDo }

// Rect is an editor rectangle in logical pixels.
type Rect struct {
	Top, Left, Bottom, Right int16
}

func (r Rect) Width() int  { return int(r.Right) - int(r.Left) }
func (r Rect) Height() int { return int(r.Bottom) - int(r.Top) }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// CanDoAnswer is a plugin's reply to a feature query.
type CanDoAnswer int

const (
	CanDoNo CanDoAnswer = iota - 1
	CanDoMaybe
	CanDoYes
)

// Responses
type (
	// EditorRectResult carries a nil Rect when the plugin has no editor.
	EditorRectResult    struct{ Rect *Rect }
	VendorVersionResult struct{ Version int }
	CanDoResult         struct{ Answer CanDoAnswer }
	// Ack acknowledges a request that returns nothing.
	Ack struct{ Op Opcode }
)

func (EditorRectResult) Opcode() Opcode    { return OpGetEditorRect }
func (VendorVersionResult) Opcode() Opcode { return OpGetVendorVersion }
func (CanDoResult) Opcode() Opcode         { return OpCanDo }
func (a Ack) Opcode() Opcode               { return a.Op }

// expect narrows resp to T, failing if the module answered with another variant.
func expect[T Response](req Request, resp Response) (T, error) {
	var zero T
	if resp == nil {
		return zero, fmt.Errorf("%s: no response", req.Opcode())
	}
	if resp.Opcode() != req.Opcode() {
		return zero, fmt.Errorf("%s: mismatched response %s", req.Opcode(), resp.Opcode())
	}
	t, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected response type %T", req.Opcode(), resp)
	}
	return t, nil
}
