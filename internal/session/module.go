package session

import "github.com/RenatoCabral2022/mixlab-host/internal/window"

// Channel layout handed to the plugin on every process call. Eight inputs (two
// live, six silent) and eight outputs cover the largest channel count the
// reference plugins declare.
const (
	InputChannels  = 8
	LiveInputs     = 2
	OutputChannels = 8
)

// Info is the identity a module reports after initialization.
type Info struct {
	Name            string
	Vendor          string
	Version         int
	UniqueID        int32
	Inputs          int
	Outputs         int
	Params          int
	HasEditor       bool
	EditorPlatforms []window.Platform
}

// Module is one loaded plugin instance as exposed by the binary loading layer.
// All methods except those on HostCallbacks are called from a single goroutine.
type Module interface {
	Initialize() error
	Info() Info
	SetSampleRate(hz float32) error
	SetBlockSize(frames int) error
	Resume() error
	Suspend() error
	Dispatch(req Request) (Response, error)
	// Process renders frames samples. Outputs are written in place.
	Process(inputs, outputs [][]float32, frames int)
	Close() error
}

// Loader resolves a path to a Module, binding cb as the module's host callbacks.
type Loader interface {
	Load(path string, cb HostCallbacks) (Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string, cb HostCallbacks) (Module, error)

func (f LoaderFunc) Load(path string, cb HostCallbacks) (Module, error) { return f(path, cb) }

// HostInfo identifies the host to the plugin.
type HostInfo struct {
	Version int
	Vendor  string
	Product string
}

// TimeInfo is the transport position reported to the plugin.
type TimeInfo struct {
	SamplePos   float64
	SampleRate  float64
	NanoSeconds float64
	Tempo       float64
	TimeSigNum  int
	TimeSigDen  int
	Playing     bool
}

// MidiEvent is a short MIDI message scheduled within a block.
type MidiEvent struct {
	DeltaFrames int
	Data        [3]byte
}

// HostCallbacks is what a plugin may call back into. Implementations must be
// safe to call from any goroutine and must not re-enter the Session.
type HostCallbacks interface {
	Automate(index int, value float32)
	PluginID() (int32, error)
	Idle() error
	HostInfo() HostInfo
	ProcessEvents(events []MidiEvent) error
	TimeInfo() (TimeInfo, error)
	BlockSize() (int, error)
	UpdateDisplay() error
}
