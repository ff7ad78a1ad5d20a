package hostcb

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/metrics"
	"github.com/RenatoCabral2022/mixlab-host/internal/session"
)

// Host identity reported through getInfo.
const (
	HostVersion = 1
	HostVendor  = "Mixlab"
	HostProduct = "Mixlab"
)

// Options configures a Sink.
type Options struct {
	SampleRate int
	BlockSize  int
	// Strict refuses every capability except automate and getInfo.
	Strict bool
}

// Sink answers plugin callbacks. All methods are safe to call from any
// goroutine and never block on host state.
type Sink struct {
	logger *zap.Logger
	opts   Options
	table  map[Capability]Entry
	start  time.Time

	pluginID atomic.Int32
	position atomic.Pointer[func() int64]

	automations sync.Map // int -> float32
	automated   atomic.Int64
	events      atomic.Int64
}

var _ session.HostCallbacks = (*Sink)(nil)

// New creates a sink with the standard or strict capability table.
func New(opts Options, logger *zap.Logger) *Sink {
	entries := standardTable[:]
	if opts.Strict {
		entries = strictTable[:]
	}
	table := make(map[Capability]Entry, len(entries))
	for _, e := range entries {
		table[e.Capability] = e
	}
	return &Sink{
		logger: logger,
		opts:   opts,
		table:  table,
		start:  time.Now(),
	}
}

// Table returns the capability table in capability order.
func (s *Sink) Table() []Entry {
	out := make([]Entry, 0, len(s.table))
	for _, c := range Capabilities() {
		out = append(out, s.table[c])
	}
	return out
}

// Supports reports whether c answers without ErrUnimplemented.
func (s *Sink) Supports(c Capability) bool {
	return s.table[c].Behavior != Refused
}

// SetPluginID records the unique id getPluginId reports.
func (s *Sink) SetPluginID(id int32) { s.pluginID.Store(id) }

// SetPositionSource sets the function getTimeInfo reads the sample position from.
func (s *Sink) SetPositionSource(fn func() int64) { s.position.Store(&fn) }

// LastAutomation returns the latest value reported for a parameter index.
func (s *Sink) LastAutomation(index int) (float32, bool) {
	v, ok := s.automations.Load(index)
	if !ok {
		return 0, false
	}
	return v.(float32), true
}

// AutomationCount returns how many automate calls have been received.
func (s *Sink) AutomationCount() int64 { return s.automated.Load() }

// EventCount returns how many events processEvents has accepted.
func (s *Sink) EventCount() int64 { return s.events.Load() }

func (s *Sink) check(c Capability) error {
	if s.table[c].Behavior == Refused {
		metrics.HostCallbacksTotal.WithLabelValues(c.String(), "refused").Inc()
		s.logger.Error("plugin called unimplemented host capability", zap.Stringer("capability", c))
		return fmt.Errorf("%w: %s", ErrUnimplemented, c)
	}
	metrics.HostCallbacksTotal.WithLabelValues(c.String(), "ok").Inc()
	return nil
}

func (s *Sink) Automate(index int, value float32) {
	s.check(Automate)
	s.automations.Store(index, value)
	s.automated.Add(1)
	s.logger.Info("automate", zap.Int("index", index), zap.Float32("value", value))
}

func (s *Sink) PluginID() (int32, error) {
	if err := s.check(PluginID); err != nil {
		return 0, err
	}
	return s.pluginID.Load(), nil
}

func (s *Sink) Idle() error {
	return s.check(Idle)
}

func (s *Sink) HostInfo() session.HostInfo {
	s.check(Info)
	return session.HostInfo{Version: HostVersion, Vendor: HostVendor, Product: HostProduct}
}

func (s *Sink) ProcessEvents(events []session.MidiEvent) error {
	if err := s.check(ProcessEvents); err != nil {
		return err
	}
	s.events.Add(int64(len(events)))
	return nil
}

func (s *Sink) TimeInfo() (session.TimeInfo, error) {
	if err := s.check(TimeInfo); err != nil {
		return session.TimeInfo{}, err
	}
	var pos int64
	if fn := s.position.Load(); fn != nil {
		pos = (*fn)()
	}
	return session.TimeInfo{
		SamplePos:   float64(pos),
		SampleRate:  float64(s.opts.SampleRate),
		NanoSeconds: float64(time.Since(s.start).Nanoseconds()),
		Tempo:       120,
		TimeSigNum:  4,
		TimeSigDen:  4,
		Playing:     true,
	}, nil
}

func (s *Sink) BlockSize() (int, error) {
	if err := s.check(BlockSize); err != nil {
		return 0, err
	}
	return s.opts.BlockSize, nil
}

func (s *Sink) UpdateDisplay() error {
	return s.check(UpdateDisplay)
}
