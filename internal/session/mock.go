package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

// MockModule is an in-process plugin with scripted behaviour for tests and
// stub runs. It passes inputs 0 and 1 through to outputs 0 and 1 scaled by Gain.
type MockModule struct {
	ModuleInfo Info
	// RequireSampleRate and RequireBlockSize reject any other value when non-zero.
	RequireSampleRate float32
	RequireBlockSize  int
	// Rect is returned for GetEditorRect; nil means no editor.
	Rect *Rect
	Gain float32
	// AutomateEvery reports a parameter change every N process calls when > 0.
	AutomateEvery int
	// ProcessHook observes every process call after the module has rendered.
	ProcessHook func(inputs, outputs [][]float32, frames int)
	// FailResume makes Resume return an error.
	FailResume bool

	callbacks HostCallbacks

	mu          sync.Mutex
	calls       []string
	frameCounts []int
	sampleRate  float32
	blockSize   int
	editorOpen  bool
	parent      window.NativeHandle

	processCalls atomic.Int64
}

// NewReferenceModule returns the stub plugin the host is exercised against:
// it requires 44100 Hz / 441 frames and wants a 400x300 editor.
func NewReferenceModule() *MockModule {
	return &MockModule{
		ModuleInfo: Info{
			Name:            "Reference Stub",
			Vendor:          "Mixlab",
			Version:         1,
			UniqueID:        0x4d78526e,
			Inputs:          2,
			Outputs:         2,
			Params:          1,
			HasEditor:       true,
			EditorPlatforms: []window.Platform{window.PlatformHeadless, window.PlatformCocoa},
		},
		RequireSampleRate: 44100,
		RequireBlockSize:  441,
		Rect:              &Rect{Top: 0, Left: 0, Bottom: 300, Right: 400},
		Gain:              1,
	}
}

func (m *MockModule) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// Calls returns the lifecycle calls made so far, in order.
func (m *MockModule) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// ProcessCalls returns how many times Process ran.
func (m *MockModule) ProcessCalls() int64 { return m.processCalls.Load() }

// FrameCounts returns the frame count of every Process call.
func (m *MockModule) FrameCounts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.frameCounts))
	copy(out, m.frameCounts)
	return out
}

// Parent returns the native handle the editor was opened with.
func (m *MockModule) Parent() (window.NativeHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parent, m.editorOpen
}

// Callbacks returns the host callbacks bound at load time.
func (m *MockModule) Callbacks() HostCallbacks { return m.callbacks }

func (m *MockModule) Initialize() error {
	m.record("initialize")
	return nil
}

func (m *MockModule) Info() Info { return m.ModuleInfo }

func (m *MockModule) SetSampleRate(hz float32) error {
	m.record("set_sample_rate")
	if m.RequireSampleRate != 0 && hz != m.RequireSampleRate {
		return fmt.Errorf("unsupported sample rate %g", hz)
	}
	m.mu.Lock()
	m.sampleRate = hz
	m.mu.Unlock()
	return nil
}

func (m *MockModule) SetBlockSize(frames int) error {
	m.record("set_block_size")
	if m.RequireBlockSize != 0 && frames != m.RequireBlockSize {
		return fmt.Errorf("unsupported block size %d", frames)
	}
	m.mu.Lock()
	m.blockSize = frames
	m.mu.Unlock()
	return nil
}

func (m *MockModule) Resume() error {
	m.record("resume")
	if m.FailResume {
		return errors.New("resume failed")
	}
	return nil
}

func (m *MockModule) Suspend() error {
	m.record("suspend")
	return nil
}

func (m *MockModule) Dispatch(req Request) (Response, error) {
	m.record(req.Opcode().String())
	switch r := req.(type) {
	case GetEditorRect:
		if m.Rect == nil {
			return EditorRectResult{}, nil
		}
		rect := *m.Rect
		return EditorRectResult{Rect: &rect}, nil
	case EditorOpen:
		m.mu.Lock()
		m.editorOpen = true
		m.parent = r.Parent
		m.mu.Unlock()
		return Ack{Op: OpEditorOpen}, nil
	case EditorClose:
		m.mu.Lock()
		m.editorOpen = false
		m.mu.Unlock()
		return Ack{Op: OpEditorClose}, nil
	case EditorIdle:
		return Ack{Op: OpEditorIdle}, nil
	case GetVendorVersion:
		return VendorVersionResult{Version: m.ModuleInfo.Version}, nil
	case CanDo:
		if r.Feature == "receiveVstEvents" || r.Feature == "sendVstTimeInfo" {
			return CanDoResult{Answer: CanDoYes}, nil
		}
		return CanDoResult{Answer: CanDoNo}, nil
	default:
		return nil, fmt.Errorf("unsupported opcode %s", req.Opcode())
	}
}

func (m *MockModule) Process(inputs, outputs [][]float32, frames int) {
	n := m.processCalls.Add(1)
	m.mu.Lock()
	m.frameCounts = append(m.frameCounts, frames)
	m.mu.Unlock()

	for ch := 0; ch < LiveInputs && ch < len(inputs) && ch < len(outputs); ch++ {
		in, out := inputs[ch], outputs[ch]
		for i := 0; i < frames; i++ {
			out[i] = in[i] * m.Gain
		}
	}

	if m.AutomateEvery > 0 && m.callbacks != nil && n%int64(m.AutomateEvery) == 0 {
		m.callbacks.Automate(0, float32(n%100)/100)
	}
	if m.ProcessHook != nil {
		m.ProcessHook(inputs, outputs, frames)
	}
}

func (m *MockModule) Close() error {
	m.record("close")
	return nil
}

// MockLoader hands out a fixed module.
type MockLoader struct {
	Module *MockModule
	Err    error

	mu    sync.Mutex
	paths []string
}

func (l *MockLoader) Load(path string, cb HostCallbacks) (Module, error) {
	l.mu.Lock()
	l.paths = append(l.paths, path)
	l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Module == nil {
		return nil, errors.New("no module")
	}
	l.Module.callbacks = cb
	return l.Module, nil
}

// Paths returns every path passed to Load.
func (l *MockLoader) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.paths))
	copy(out, l.paths)
	return out
}

// StubLoader serves named stub modules for StubScheme paths. Only "reference"
// is known.
func StubLoader() Loader {
	return LoaderFunc(func(name string, cb HostCallbacks) (Module, error) {
		switch name {
		case "reference":
			m := NewReferenceModule()
			m.AutomateEvery = 100
			m.callbacks = cb
			return m, nil
		default:
			return nil, fmt.Errorf("unknown stub module %q", name)
		}
	})
}
