package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RenatoCabral2022/mixlab-host/internal/audio"
	"github.com/RenatoCabral2022/mixlab-host/internal/config"
	"github.com/RenatoCabral2022/mixlab-host/internal/delivery"
	"github.com/RenatoCabral2022/mixlab-host/internal/hostcb"
	"github.com/RenatoCabral2022/mixlab-host/internal/render"
	"github.com/RenatoCabral2022/mixlab-host/internal/session"
	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

// Host lifecycle states.
const (
	StateCreated  = "created"
	StateStarting = "starting"
	StateReady    = "ready"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
	StateFailed   = "failed"
)

// Host wires the plugin session, generator, delivery channel and render
// dispatcher around one windowing toolkit.
type Host struct {
	cfg     *config.Config
	logger  *zap.Logger
	toolkit window.Toolkit

	callbacks  *hostcb.Sink
	session    *session.Session
	channel    *delivery.Channel
	dispatcher *render.Dispatcher
	meter      *render.Meter
	generator  *audio.Generator

	mu      sync.Mutex
	state   string
	window  window.Window
	started time.Time

	position     atomic.Int64
	processed    atomic.Uint64
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a host. Nothing is loaded until Start.
func New(cfg *config.Config, loader session.Loader, toolkit window.Toolkit, logger *zap.Logger) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := &Host{
		cfg:     cfg,
		logger:  logger,
		toolkit: toolkit,
		state:   StateCreated,
	}

	h.callbacks = hostcb.New(hostcb.Options{
		SampleRate: cfg.SampleRate,
		BlockSize:  cfg.BlockSize,
		Strict:     cfg.StrictCallbacks,
	}, logger.With(zap.String("component", "hostcb")))
	h.callbacks.SetPositionSource(h.position.Load)

	h.session = session.New(loader, h.callbacks, logger)
	h.logger = logger.With(zap.String("session", h.session.ID))

	ch, err := delivery.New(toolkit, delivery.Options{
		Capacity:    cfg.QueueCapacity,
		Policy:      cfg.OverflowPolicy,
		BacklogWarn: cfg.BacklogWarn,
	}, h.logger)
	if err != nil {
		return nil, fmt.Errorf("create delivery channel: %w", err)
	}
	h.channel = ch

	h.meter = render.NewMeter(session.OutputChannels, cfg.SampleRate)
	h.dispatcher = render.New(h.session, cfg.BlockSize, h.meter, h.logger)

	if !cfg.EditorOnly {
		gen, err := audio.NewGenerator(audio.GeneratorConfig{
			SampleRate: cfg.SampleRate,
			BlockSize:  cfg.BlockSize,
			Frequency:  cfg.ToneFrequency,
			MaxBlocks:  cfg.MaxBlocks,
		}, h.channel, h.logger)
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		h.generator = gen
	}
	return h, nil
}

func (h *Host) setState(s string) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Session returns the plugin session.
func (h *Host) Session() *session.Session { return h.session }

// Callbacks returns the host callback sink handed to the plugin.
func (h *Host) Callbacks() *hostcb.Sink { return h.callbacks }

// Window returns the editor window, or nil when running headless.
func (h *Host) Window() window.Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.window
}

// Start loads the plugin at path and brings it to the running state: the
// session is Active, and EditorOpen unless the host is headless. Every failure
// is a *session.StartupError.
func (h *Host) Start(path string) error {
	h.mu.Lock()
	if h.state != StateCreated {
		h.mu.Unlock()
		return fmt.Errorf("host already started (state %s)", h.state)
	}
	h.state = StateStarting
	h.mu.Unlock()

	if err := h.start(path); err != nil {
		h.setState(StateFailed)
		h.logger.Error("startup failed", zap.Error(err))
		if uerr := h.session.Unload(); uerr != nil {
			h.logger.Warn("unload after failed startup", zap.Error(uerr))
		}
		return err
	}

	h.setState(StateReady)
	h.logger.Info("host ready",
		zap.String("plugin", h.session.Info().Name),
		zap.Stringer("sessionState", h.session.State()),
		zap.Bool("headless", h.cfg.Headless),
		zap.Bool("editorOnly", h.cfg.EditorOnly),
	)
	return nil
}

func (h *Host) start(path string) error {
	s := h.session
	if err := s.Load(path); err != nil {
		return session.Startup("load", err)
	}
	if err := s.Initialize(); err != nil {
		return session.Startup("initialize", err)
	}
	h.callbacks.SetPluginID(s.Info().UniqueID)
	if err := s.Configure(h.cfg.SampleRate, h.cfg.BlockSize); err != nil {
		return session.Startup("configure", err)
	}
	if err := s.Activate(); err != nil {
		return session.Startup("activate", err)
	}
	if h.cfg.Headless {
		return nil
	}

	rect, err := s.EditorRect()
	if err != nil {
		return session.Startup("editor rect", err)
	}
	w, err := h.toolkit.CreateWindow(window.Options{
		Title:     h.cfg.WindowTitle,
		Size:      window.Size{Width: rect.Width(), Height: rect.Height()},
		Resizable: false,
	})
	if err != nil {
		return session.Startup("create window", err)
	}
	h.mu.Lock()
	h.window = w
	h.mu.Unlock()

	handle, err := window.ResolveHandle(w, s.Info().EditorPlatforms)
	if err != nil {
		return session.Startup("native handle", err)
	}
	if err := s.OpenEditor(handle); err != nil {
		return session.Startup("editor open", err)
	}
	return nil
}

// Run drives the event loop on the calling goroutine until ctx is cancelled,
// RequestShutdown is called, or the generator fails. The generator runs on its
// own goroutine. Run always finishes with Shutdown.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateReady {
		st := h.state
		h.mu.Unlock()
		return fmt.Errorf("host not ready (state %s)", st)
	}
	h.state = StateRunning
	h.started = time.Now()
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if h.generator != nil {
		g.Go(func() error {
			if err := h.generator.Run(gctx); err != nil {
				return err
			}
			if h.generator.Status().State == audio.StateFinished {
				// Queued behind the last wake, so every block is rendered first.
				h.logger.Info("block limit reached", zap.Uint64("blocks", h.cfg.MaxBlocks))
				return h.RequestShutdown()
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if err := h.toolkit.Post(window.Event{Kind: window.EventDestroy}); err != nil && !errors.Is(err, window.ErrLoopClosed) {
			return fmt.Errorf("post destroy: %w", err)
		}
		return nil
	})

	loopErr := h.toolkit.Run(h.handle)
	cancel()
	runErr := g.Wait()

	return multierr.Combine(loopErr, runErr, h.Shutdown())
}

func (h *Host) handle(ev window.Event) {
	switch ev.Kind {
	case window.EventBlocksReady:
		h.channel.Drain(h.render)
	case window.EventRedraw:
		if h.session.State() == session.StateEditorOpen {
			if _, err := h.session.Dispatch(session.EditorIdle{}); err != nil {
				h.logger.Warn("editor idle failed", zap.Error(err))
			}
		}
	case window.EventDestroy:
		h.logger.Info("event loop stopping", zap.Uint64("blocksProcessed", h.processed.Load()))
	}
}

func (h *Host) render(b *audio.Block) {
	h.dispatcher.Render(b)
	h.position.Store(h.dispatcher.Position())
	h.processed.Add(1)
}

// RequestShutdown asks a running host to leave its event loop. Safe from any
// goroutine.
func (h *Host) RequestShutdown() error {
	h.logger.Info("shutdown requested")
	err := h.toolkit.Post(window.Event{Kind: window.EventDestroy})
	if errors.Is(err, window.ErrLoopClosed) {
		return nil
	}
	return err
}

// Shutdown stops the generator, closes and drains the delivery channel, and
// unloads the plugin. It must not run concurrently with the event loop. Run
// calls it on exit; call it directly only when Run was never called.
// Idempotent.
func (h *Host) Shutdown() error {
	h.shutdownOnce.Do(func() {
		h.setState(StateStopping)

		if h.generator != nil {
			h.generator.Stop()
		}
		h.channel.Close()
		discarded := h.channel.Drain(func(*audio.Block) {})

		var errs error
		errs = multierr.Append(errs, h.session.Unload())

		h.shutdownErr = errs
		h.setState(StateStopped)
		h.logger.Info("host stopped",
			zap.Uint64("blocksProcessed", h.processed.Load()),
			zap.Int("blocksDiscarded", discarded),
			zap.Error(errs),
		)
	})
	return h.shutdownErr
}

// Status is a point-in-time view of the host for the admin API.
type Status struct {
	SessionID       string         `json:"sessionId"`
	State           string         `json:"state"`
	SessionState    string         `json:"sessionState"`
	Plugin          string         `json:"plugin,omitempty"`
	Path            string         `json:"path,omitempty"`
	SampleRate      int            `json:"sampleRate"`
	BlockSize       int            `json:"blockSize"`
	BlocksProcessed uint64         `json:"blocksProcessed"`
	Backlog         int            `json:"backlog"`
	Uptime          string         `json:"uptime,omitempty"`
	OutputPeaks     []float32      `json:"outputPeaks"`
	Delivery        delivery.Stats `json:"delivery"`
	Generator       *audio.Status  `json:"generator,omitempty"`
	Automations     int64          `json:"automations"`
}

// Status returns the current host status. Safe from any goroutine once Start
// has returned.
func (h *Host) Status() Status {
	h.mu.Lock()
	state := h.state
	started := h.started
	h.mu.Unlock()

	st := Status{
		SessionID:       h.session.ID,
		State:           state,
		SessionState:    h.session.State().String(),
		SampleRate:      h.cfg.SampleRate,
		BlockSize:       h.cfg.BlockSize,
		BlocksProcessed: h.processed.Load(),
		Backlog:         h.channel.Len(),
		OutputPeaks:     h.meter.Peaks(),
		Delivery:        h.channel.Stats(),
		Automations:     h.callbacks.AutomationCount(),
	}
	if state != StateCreated && state != StateStarting {
		st.Plugin = h.session.Info().Name
		st.Path = h.session.Path()
	}
	if !started.IsZero() {
		st.Uptime = time.Since(started).Round(time.Millisecond).String()
	}
	if h.generator != nil {
		gs := h.generator.Status()
		st.Generator = &gs
	}
	return st
}
