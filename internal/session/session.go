package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/metrics"
	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

// Session owns one plugin instance and walks it through its lifecycle.
// Apart from State, methods must be called from the goroutine that owns the
// plugin (the UI/event goroutine); the session does not lock around plugin calls.
type Session struct {
	ID string

	loader    Loader
	callbacks HostCallbacks
	logger    *zap.Logger

	state      atomic.Int32
	module     Module
	path       string
	info       Info
	sampleRate int
	blockSize  int
	// editorRect is the last rect the plugin reported; nil until queried.
	editorRect *Rect
}

// New creates an unloaded session.
func New(loader Loader, callbacks HostCallbacks, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		loader:    loader,
		callbacks: callbacks,
		logger:    logger.With(zap.String("session", id)),
	}
}

// State returns the current lifecycle state. Safe from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

// Info returns the identity read during Initialize.
func (s *Session) Info() Info { return s.info }

// Path returns the module path passed to Load.
func (s *Session) Path() string { return s.path }

// SampleRate returns the configured sample rate, or 0 before Configure.
func (s *Session) SampleRate() int { return s.sampleRate }

// BlockSize returns the configured block size, or 0 before Configure.
func (s *Session) BlockSize() int { return s.blockSize }

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	metrics.SessionState.Set(float64(next))
	metrics.LifecycleTransitionsTotal.WithLabelValues(next.String()).Inc()
	s.logger.Info("session transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
}

func (s *Session) require(op string, ok func(State) bool) error {
	st := s.State()
	if st == StateUnloaded {
		return fmt.Errorf("%w: %s: %w", ErrLifecycle, op, ErrUnloaded)
	}
	if !ok(st) {
		return fmt.Errorf("%w: %s not allowed in state %s", ErrLifecycle, op, st)
	}
	return nil
}

func in(states ...State) func(State) bool {
	return func(st State) bool {
		for _, s := range states {
			if s == st {
				return true
			}
		}
		return false
	}
}

// Load resolves path to a plugin module: Unloaded → Loaded.
func (s *Session) Load(path string) error {
	if st := s.State(); st != StateUnloaded {
		return fmt.Errorf("%w: load in state %s", ErrLifecycle, st)
	}
	mod, err := s.loader.Load(path, s.callbacks)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	if mod == nil {
		return fmt.Errorf("%w: %s: loader returned no module", ErrLoad, path)
	}
	s.module = mod
	s.path = path
	s.logger.Info("plugin module loaded", zap.String("path", path))
	s.setState(StateLoaded)
	return nil
}

// Initialize runs the plugin's one-time initialization: Loaded → Initialized.
func (s *Session) Initialize() error {
	if err := s.require("initialize", in(StateLoaded)); err != nil {
		return err
	}
	if err := s.module.Initialize(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	s.info = s.module.Info()
	s.logger.Info("plugin initialized",
		zap.String("name", s.info.Name),
		zap.String("vendor", s.info.Vendor),
		zap.Int("version", s.info.Version),
		zap.Int32("uniqueID", s.info.UniqueID),
		zap.Int("inputs", s.info.Inputs),
		zap.Int("outputs", s.info.Outputs),
		zap.Int("params", s.info.Params),
		zap.Bool("hasEditor", s.info.HasEditor),
	)
	if s.info.Inputs > InputChannels || s.info.Outputs > OutputChannels {
		s.logger.Warn("plugin declares more channels than the host provides",
			zap.Int("hostInputs", InputChannels),
			zap.Int("hostOutputs", OutputChannels),
		)
	}
	s.setState(StateInitialized)
	return nil
}

// Configure sets sample rate and block size: Initialized → Configured.
func (s *Session) Configure(sampleRate, blockSize int) error {
	if err := s.require("configure", in(StateInitialized)); err != nil {
		return err
	}
	if sampleRate <= 0 || blockSize <= 0 {
		return fmt.Errorf("%w: sample rate %d, block size %d", ErrConfigRejected, sampleRate, blockSize)
	}
	if err := s.module.SetSampleRate(float32(sampleRate)); err != nil {
		return fmt.Errorf("%w: sample rate %d: %w", ErrConfigRejected, sampleRate, err)
	}
	if err := s.module.SetBlockSize(blockSize); err != nil {
		return fmt.Errorf("%w: block size %d: %w", ErrConfigRejected, blockSize, err)
	}
	s.sampleRate = sampleRate
	s.blockSize = blockSize
	s.setState(StateConfigured)
	return nil
}

// Activate resumes the plugin so it may process: Configured → Active.
func (s *Session) Activate() error {
	if err := s.require("activate", in(StateConfigured)); err != nil {
		return err
	}
	if err := s.module.Resume(); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	s.setState(StateActive)
	return nil
}

// Dispatch sends a typed request to the plugin. Allowed from Loaded onwards.
func (s *Session) Dispatch(req Request) (Response, error) {
	if err := s.require(req.Opcode().String(), State.CanDispatch); err != nil {
		return nil, err
	}
	resp, err := s.module.Dispatch(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", req.Opcode(), err)
	}
	return resp, nil
}

// EditorRect queries the plugin's preferred editor size and remembers it for
// OpenEditor.
func (s *Session) EditorRect() (Rect, error) {
	req := GetEditorRect{}
	resp, err := s.Dispatch(req)
	if err != nil {
		return Rect{}, err
	}
	res, err := expect[EditorRectResult](req, resp)
	if err != nil {
		return Rect{}, err
	}
	if res.Rect == nil || res.Rect.Empty() {
		s.editorRect = nil
		return Rect{}, ErrNoEditor
	}
	rect := *res.Rect
	s.editorRect = &rect
	return rect, nil
}

// OpenEditor embeds the plugin editor into parent: Active → EditorOpen.
// The rect is only queried here if EditorRect has not already been called.
func (s *Session) OpenEditor(parent window.NativeHandle) error {
	if err := s.require("editor open", in(StateActive)); err != nil {
		return err
	}
	if s.editorRect == nil {
		if _, err := s.EditorRect(); err != nil {
			return err
		}
	}
	if !s.acceptsPlatform(parent.Platform) {
		return fmt.Errorf("%w: plugin editor does not accept %s handles", window.ErrUnsupportedPlatform, parent.Platform)
	}
	req := EditorOpen{Parent: parent}
	resp, err := s.Dispatch(req)
	if err != nil {
		return err
	}
	if _, err := expect[Ack](req, resp); err != nil {
		return err
	}
	s.setState(StateEditorOpen)
	return nil
}

func (s *Session) acceptsPlatform(p window.Platform) bool {
	for _, ep := range s.info.EditorPlatforms {
		if ep == p {
			return true
		}
	}
	return false
}

// Process renders one block. The channel layout and frame count are checked
// against the configured block size before the plugin is called.
func (s *Session) Process(inputs, outputs [][]float32, frames int) error {
	if err := s.require("process", State.CanProcess); err != nil {
		return err
	}
	if frames != s.blockSize {
		return fmt.Errorf("%w: got %d, want %d", ErrFrameCount, frames, s.blockSize)
	}
	if len(inputs) != InputChannels || len(outputs) != OutputChannels {
		return fmt.Errorf("%w: got %d inputs and %d outputs, want %d and %d",
			ErrLifecycle, len(inputs), len(outputs), InputChannels, OutputChannels)
	}
	for i := range inputs {
		if len(inputs[i]) < frames {
			return fmt.Errorf("%w: input %d holds %d frames", ErrFrameCount, i, len(inputs[i]))
		}
	}
	for i := range outputs {
		if len(outputs[i]) < frames {
			return fmt.Errorf("%w: output %d holds %d frames", ErrFrameCount, i, len(outputs[i]))
		}
	}

	start := time.Now()
	s.module.Process(inputs, outputs, frames)
	metrics.ProcessDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	return nil
}

// Deactivate closes the editor if open and suspends the plugin:
// Active/EditorOpen → Configured.
func (s *Session) Deactivate() error {
	if err := s.require("deactivate", State.CanProcess); err != nil {
		return err
	}
	var errs error
	if s.State() == StateEditorOpen {
		if _, err := s.Dispatch(EditorClose{}); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if err := s.module.Suspend(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("suspend: %w", err))
	}
	s.setState(StateConfigured)
	return errs
}

// Unload releases the module from any state. Idempotent.
func (s *Session) Unload() error {
	st := s.State()
	if st == StateUnloaded {
		return nil
	}
	var errs error
	if st.CanProcess() {
		errs = multierr.Append(errs, s.Deactivate())
	}
	if err := s.module.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close: %w", err))
	}
	s.module = nil
	s.editorRect = nil
	s.sampleRate = 0
	s.blockSize = 0
	s.setState(StateUnloaded)
	return errs
}
