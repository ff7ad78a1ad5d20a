// Package window describes the windowing toolkit the host depends on: window
// creation, native handle exposure, cross-thread event posting and a blocking
// dispatch loop. Headless implements it in-process.
package window

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned when a native handle cannot be handed to a plugin editor.
	ErrUnsupportedPlatform = errors.New("unsupported window platform")
	// ErrLoopClosed is returned by Post once the dispatch loop has exited.
	ErrLoopClosed = errors.New("event loop closed")
)

// Platform tags the shape of a native window handle.
type Platform int

const (
	PlatformHeadless Platform = iota
	PlatformCocoa
	PlatformWin32
	PlatformX11
)

func (p Platform) String() string {
	switch p {
	case PlatformHeadless:
		return "headless"
	case PlatformCocoa:
		return "cocoa"
	case PlatformWin32:
		return "win32"
	case PlatformX11:
		return "x11"
	default:
		return fmt.Sprintf("platform(%d)", int(p))
	}
}

// NativeHandle is the opaque parent handle passed to a plugin editor.
// Ptr is an NSView*, HWND, X11 Window id, or a synthetic id for headless windows.
type NativeHandle struct {
	Platform Platform
	Ptr      uintptr
}

// Size is a logical window size.
type Size struct {
	Width  int
	Height int
}

// Options configures CreateWindow.
type Options struct {
	Title     string
	Size      Size
	Resizable bool
}

// Window is a host window created by a Toolkit.
type Window interface {
	ID() uint64
	Title() string
	Size() Size
	Resizable() bool
	NativeHandle() (NativeHandle, error)
}

// EventKind identifies events delivered by the dispatch loop.
type EventKind int

const (
	// EventBlocksReady signals that audio blocks are waiting in the delivery channel.
	EventBlocksReady EventKind = iota
	// EventRedraw asks the host to repaint its window.
	EventRedraw
	// EventUser carries an application-defined payload.
	EventUser
	// EventDestroy ends the dispatch loop after the handler has seen it.
	EventDestroy
)

func (k EventKind) String() string {
	switch k {
	case EventBlocksReady:
		return "blocks_ready"
	case EventRedraw:
		return "redraw"
	case EventUser:
		return "user"
	case EventDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one item processed by the dispatch loop.
type Event struct {
	Kind    EventKind
	Payload any
}

// Poster injects events into a dispatch loop from any goroutine.
type Poster interface {
	Post(ev Event) error
}

// Toolkit is the windowing collaborator.
type Toolkit interface {
	Poster
	CreateWindow(opts Options) (Window, error)
	// Run blocks, invoking handler for each event in order on a single goroutine,
	// until an EventDestroy has been handled.
	Run(handler func(Event)) error
}

// ResolveHandle returns w's native handle if its platform is one the plugin
// editor accepts.
func ResolveHandle(w Window, supported []Platform) (NativeHandle, error) {
	h, err := w.NativeHandle()
	if err != nil {
		return NativeHandle{}, err
	}
	for _, p := range supported {
		if p == h.Platform {
			return h, nil
		}
	}
	return NativeHandle{}, fmt.Errorf("%w: editor does not accept %s handles", ErrUnsupportedPlatform, h.Platform)
}
