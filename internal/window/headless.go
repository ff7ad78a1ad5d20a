package window

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/ringbuffer"
)

// Headless is an in-process Toolkit. Windows have no surface; the event loop is
// a FIFO queue drained on the goroutine that calls Run.
type Headless struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   *ringbuffer.RingBuffer[Event]
	wake    chan struct{}
	running bool
	closed  bool

	nextID  atomic.Uint64
	windows sync.Map // uint64 -> *headlessWindow
}

// NewHeadless creates a headless toolkit.
func NewHeadless(logger *zap.Logger) *Headless {
	return &Headless{
		logger: logger,
		queue:  ringbuffer.New[Event](0, ringbuffer.Reject),
		wake:   make(chan struct{}, 1),
	}
}

// CreateWindow registers a window of the requested logical size.
func (h *Headless) CreateWindow(opts Options) (Window, error) {
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		return nil, errors.New("window size must be positive")
	}
	w := &headlessWindow{
		id:   h.nextID.Add(1),
		opts: opts,
	}
	h.windows.Store(w.id, w)
	h.logger.Info("window created",
		zap.Uint64("id", w.id),
		zap.String("title", opts.Title),
		zap.Int("width", opts.Size.Width),
		zap.Int("height", opts.Size.Height),
	)
	return w, nil
}

// Window returns a window created by this toolkit.
func (h *Headless) Window(id uint64) (Window, bool) {
	v, ok := h.windows.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*headlessWindow), true
}

// Post appends ev to the loop queue. It never blocks.
func (h *Headless) Post(ev Event) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrLoopClosed
	}
	h.queue.Push(ev)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued, unhandled events.
func (h *Headless) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue.Len()
}

// Run dispatches events until EventDestroy. The calling goroutine is locked to
// its OS thread for the duration, as native toolkits require.
func (h *Headless) Run(handler func(Event)) error {
	h.mu.Lock()
	if h.running || h.closed {
		h.mu.Unlock()
		return errors.New("event loop already run")
	}
	h.running = true
	h.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		ev, ok := h.next()
		if !ok {
			<-h.wake
			continue
		}
		handler(ev)
		if ev.Kind == EventDestroy {
			h.mu.Lock()
			h.closed = true
			h.running = false
			dropped := h.queue.Len()
			for h.queue.Len() > 0 {
				h.queue.Pop()
			}
			h.mu.Unlock()
			h.logger.Info("event loop destroyed", zap.Int("droppedEvents", dropped))
			return nil
		}
	}
}

func (h *Headless) next() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue.Pop()
}

type headlessWindow struct {
	id   uint64
	opts Options
}

func (w *headlessWindow) ID() uint64      { return w.id }
func (w *headlessWindow) Title() string   { return w.opts.Title }
func (w *headlessWindow) Size() Size      { return w.opts.Size }
func (w *headlessWindow) Resizable() bool { return w.opts.Resizable }

func (w *headlessWindow) NativeHandle() (NativeHandle, error) {
	return NativeHandle{Platform: PlatformHeadless, Ptr: uintptr(w.id)}, nil
}
