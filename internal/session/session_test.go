package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

type nopCallbacks struct{ automated int }

func (c *nopCallbacks) Automate(int, float32)           { c.automated++ }
func (c *nopCallbacks) PluginID() (int32, error)        { return 0, nil }
func (c *nopCallbacks) Idle() error                     { return nil }
func (c *nopCallbacks) ProcessEvents([]MidiEvent) error { return nil }
func (c *nopCallbacks) TimeInfo() (TimeInfo, error)     { return TimeInfo{}, nil }
func (c *nopCallbacks) BlockSize() (int, error)         { return 0, nil }
func (c *nopCallbacks) UpdateDisplay() error            { return nil }

func (c *nopCallbacks) HostInfo() HostInfo {
	return HostInfo{Version: 1, Vendor: "Mixlab", Product: "Mixlab"}
}

func newTestSession(t *testing.T, m *MockModule) *Session {
	t.Helper()
	return New(&MockLoader{Module: m}, &nopCallbacks{}, zaptest.NewLogger(t))
}

func buffers(frames int) (inputs, outputs [][]float32) {
	inputs = make([][]float32, InputChannels)
	outputs = make([][]float32, OutputChannels)
	for i := range inputs {
		inputs[i] = make([]float32, frames)
	}
	for i := range outputs {
		outputs[i] = make([]float32, frames)
	}
	return inputs, outputs
}

func headlessHandle() window.NativeHandle {
	return window.NativeHandle{Platform: window.PlatformHeadless, Ptr: 1}
}

func startSession(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Load("stub:reference"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := s.Configure(44100, 441); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := s.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
}

func TestLifecycleToEditorOpen(t *testing.T) {
	m := NewReferenceModule()
	s := newTestSession(t, m)
	if s.State() != StateUnloaded {
		t.Fatalf("expected unloaded, got %s", s.State())
	}
	startSession(t, s)
	if s.State() != StateActive {
		t.Fatalf("expected active, got %s", s.State())
	}

	rect, err := s.EditorRect()
	if err != nil {
		t.Fatalf("editor rect: %v", err)
	}
	if rect.Width() != 400 || rect.Height() != 300 {
		t.Errorf("expected 400x300, got %dx%d", rect.Width(), rect.Height())
	}

	if err := s.OpenEditor(headlessHandle()); err != nil {
		t.Fatalf("open editor: %v", err)
	}
	if s.State() != StateEditorOpen {
		t.Fatalf("expected editor_open, got %s", s.State())
	}
	if parent, open := m.Parent(); !open || parent != headlessHandle() {
		t.Errorf("editor not opened with parent handle: %+v %v", parent, open)
	}

	want := []string{"initialize", "set_sample_rate", "set_block_size", "resume",
		"editor_get_rect", "editor_open"}
	got := m.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected call sequence:\n got %v\nwant %v", got, want)
	}
	if s.Info().Name != "Reference Stub" {
		t.Errorf("expected info to be read at initialize, got %+v", s.Info())
	}
}

func TestProcessBeforeActiveIsRejected(t *testing.T) {
	m := NewReferenceModule()
	s := newTestSession(t, m)
	in, out := buffers(441)

	if err := s.Process(in, out, 441); !errors.Is(err, ErrLifecycle) || !errors.Is(err, ErrUnloaded) {
		t.Errorf("expected lifecycle+unloaded error, got %v", err)
	}

	s.Load("stub:reference")
	s.Initialize()
	s.Configure(44100, 441)
	if err := s.Process(in, out, 441); !errors.Is(err, ErrLifecycle) {
		t.Errorf("expected lifecycle error in configured state, got %v", err)
	}
	if m.ProcessCalls() != 0 {
		t.Errorf("plugin process must not run, ran %d times", m.ProcessCalls())
	}
}

func TestProcessWhenActive(t *testing.T) {
	m := NewReferenceModule()
	m.Gain = 0.5
	s := newTestSession(t, m)
	startSession(t, s)

	in, out := buffers(441)
	in[0][10] = 1
	if err := s.Process(in, out, 441); err != nil {
		t.Fatalf("process: %v", err)
	}
	if m.ProcessCalls() != 1 {
		t.Errorf("expected 1 process call, got %d", m.ProcessCalls())
	}
	if out[0][10] != 0.5 {
		t.Errorf("expected pass-through with gain, got %g", out[0][10])
	}
}

func TestProcessFrameCountMismatch(t *testing.T) {
	s := newTestSession(t, NewReferenceModule())
	startSession(t, s)

	in, out := buffers(441)
	if err := s.Process(in, out, 440); !errors.Is(err, ErrFrameCount) {
		t.Errorf("expected ErrFrameCount, got %v", err)
	}
	short, _ := buffers(100)
	if err := s.Process(short, out, 441); !errors.Is(err, ErrFrameCount) {
		t.Errorf("expected ErrFrameCount for short input, got %v", err)
	}
	if err := s.Process(in[:2], out, 441); !errors.Is(err, ErrLifecycle) {
		t.Errorf("expected layout error for 2 inputs, got %v", err)
	}
}

func TestConfigureRejected(t *testing.T) {
	s := newTestSession(t, NewReferenceModule())
	s.Load("stub:reference")
	s.Initialize()
	if err := s.Configure(48000, 441); !errors.Is(err, ErrConfigRejected) {
		t.Errorf("expected ErrConfigRejected for sample rate, got %v", err)
	}
	if err := s.Configure(44100, 512); !errors.Is(err, ErrConfigRejected) {
		t.Errorf("expected ErrConfigRejected for block size, got %v", err)
	}
	if s.State() != StateInitialized {
		t.Errorf("rejected configure must not transition, state %s", s.State())
	}
}

func TestLoadErrors(t *testing.T) {
	s := New(&MockLoader{Err: errors.New("bad binary")}, &nopCallbacks{}, zaptest.NewLogger(t))
	if err := s.Load("/nope.so"); !errors.Is(err, ErrLoad) {
		t.Errorf("expected ErrLoad, got %v", err)
	}
	if s.State() != StateUnloaded {
		t.Errorf("expected unloaded after failed load, got %s", s.State())
	}

	s = newTestSession(t, NewReferenceModule())
	if err := s.Load("stub:reference"); err != nil {
		t.Fatal(err)
	}
	if err := s.Load("stub:reference"); !errors.Is(err, ErrLifecycle) {
		t.Errorf("expected double load to be a lifecycle violation, got %v", err)
	}
}

func TestNoEditor(t *testing.T) {
	m := NewReferenceModule()
	m.Rect = nil
	s := newTestSession(t, m)
	startSession(t, s)

	if _, err := s.EditorRect(); !errors.Is(err, ErrNoEditor) {
		t.Errorf("expected ErrNoEditor, got %v", err)
	}
	if err := s.OpenEditor(headlessHandle()); !errors.Is(err, ErrNoEditor) {
		t.Errorf("expected ErrNoEditor from OpenEditor, got %v", err)
	}
	if s.State() != StateActive {
		t.Errorf("failed editor open must stay active, got %s", s.State())
	}

	m.Rect = &Rect{}
	if _, err := s.EditorRect(); !errors.Is(err, ErrNoEditor) {
		t.Errorf("expected ErrNoEditor for empty rect, got %v", err)
	}
}

func TestOpenEditorUnsupportedPlatform(t *testing.T) {
	s := newTestSession(t, NewReferenceModule())
	startSession(t, s)
	err := s.OpenEditor(window.NativeHandle{Platform: window.PlatformWin32, Ptr: 7})
	if !errors.Is(err, window.ErrUnsupportedPlatform) {
		t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestOpenEditorQueriesRectOnce(t *testing.T) {
	m := NewReferenceModule()
	s := newTestSession(t, m)
	startSession(t, s)

	// Without a prior EditorRect the rect is fetched by OpenEditor itself.
	if err := s.OpenEditor(headlessHandle()); err != nil {
		t.Fatal(err)
	}
	var queries int
	for _, c := range m.Calls() {
		if c == "editor_get_rect" {
			queries++
		}
	}
	if queries != 1 {
		t.Errorf("expected one rect query, got %d in %v", queries, m.Calls())
	}

	// A reloaded plugin is asked again.
	if err := s.Unload(); err != nil {
		t.Fatal(err)
	}
	startSession(t, s)
	m.Rect = nil
	if err := s.OpenEditor(headlessHandle()); !errors.Is(err, ErrNoEditor) {
		t.Errorf("expected a fresh query after reload, got %v", err)
	}
}

func TestOpenEditorRequiresActive(t *testing.T) {
	s := newTestSession(t, NewReferenceModule())
	s.Load("stub:reference")
	s.Initialize()
	if err := s.OpenEditor(headlessHandle()); !errors.Is(err, ErrLifecycle) {
		t.Errorf("expected lifecycle error, got %v", err)
	}
}

func TestDispatchOnceLoaded(t *testing.T) {
	s := newTestSession(t, NewReferenceModule())
	if _, err := s.Dispatch(GetVendorVersion{}); !errors.Is(err, ErrLifecycle) {
		t.Errorf("expected dispatch before load to fail, got %v", err)
	}
	s.Load("stub:reference")
	resp, err := s.Dispatch(CanDo{Feature: "receiveVstEvents"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if r, ok := resp.(CanDoResult); !ok || r.Answer != CanDoYes {
		t.Errorf("unexpected can-do response %#v", resp)
	}
}

func TestDeactivateAndUnload(t *testing.T) {
	m := NewReferenceModule()
	s := newTestSession(t, m)
	startSession(t, s)
	if err := s.OpenEditor(headlessHandle()); err != nil {
		t.Fatal(err)
	}

	if err := s.Unload(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if s.State() != StateUnloaded {
		t.Fatalf("expected unloaded, got %s", s.State())
	}
	calls := m.Calls()
	tail := strings.Join(calls[len(calls)-3:], ",")
	if tail != "editor_close,suspend,close" {
		t.Errorf("expected editor_close,suspend,close teardown, got %s", tail)
	}
	if err := s.Unload(); err != nil {
		t.Errorf("second unload should be a no-op, got %v", err)
	}

	in, out := buffers(441)
	if err := s.Process(in, out, 441); !errors.Is(err, ErrUnloaded) {
		t.Errorf("expected ErrUnloaded after unload, got %v", err)
	}
	if _, err := s.Dispatch(GetEditorRect{}); !errors.Is(err, ErrUnloaded) {
		t.Errorf("expected ErrUnloaded from dispatch after unload, got %v", err)
	}
}

func TestDeactivateReturnsToConfigured(t *testing.T) {
	s := newTestSession(t, NewReferenceModule())
	startSession(t, s)
	if err := s.Deactivate(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateConfigured {
		t.Errorf("expected configured, got %s", s.State())
	}
	if err := s.Activate(); err != nil {
		t.Errorf("expected reactivation to succeed: %v", err)
	}
}

func TestResumeFailure(t *testing.T) {
	m := NewReferenceModule()
	m.FailResume = true
	s := newTestSession(t, m)
	s.Load("stub:reference")
	s.Initialize()
	s.Configure(44100, 441)
	if err := s.Activate(); err == nil {
		t.Fatal("expected resume failure")
	}
	if s.State() != StateConfigured {
		t.Errorf("expected configured, got %s", s.State())
	}
}

func TestStartupError(t *testing.T) {
	err := Startup("configure", ErrConfigRejected)
	var se *StartupError
	if !errors.As(err, &se) || se.Stage != "configure" {
		t.Fatalf("expected StartupError at configure, got %v", err)
	}
	if !errors.Is(err, ErrConfigRejected) {
		t.Error("StartupError must unwrap to its cause")
	}
	if Startup("x", nil) != nil {
		t.Error("nil error must stay nil")
	}
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plugin.so")
	if err := os.WriteFile(file, []byte{0x7f, 'E', 'L', 'F'}, 0o644); err != nil {
		t.Fatal(err)
	}
	bundle := filepath.Join(dir, "Synth.vst3")
	if err := os.Mkdir(bundle, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := ValidatePath(file); err != nil {
		t.Errorf("regular file should validate: %v", err)
	}
	if err := ValidatePath(bundle); err != nil {
		t.Errorf("bundle directory should validate: %v", err)
	}
	if err := ValidatePath(dir); err == nil {
		t.Error("plain directory should not validate")
	}
	if err := ValidatePath(""); err == nil {
		t.Error("empty path should not validate")
	}
	if err := ValidatePath(filepath.Join(dir, "missing.so")); err == nil {
		t.Error("missing file should not validate")
	}
	if err := ValidatePath(strings.Repeat("a", maxPathLength+1)); err == nil {
		t.Error("overlong path should not validate")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(StubLoader())

	mod, err := reg.Load("stub:reference", &nopCallbacks{})
	if err != nil {
		t.Fatalf("stub load: %v", err)
	}
	if mod.Info().Name != "Reference Stub" {
		t.Errorf("unexpected stub module %+v", mod.Info())
	}
	if _, err := reg.Load("stub:unknown", &nopCallbacks{}); err == nil {
		t.Error("expected unknown stub to fail")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "Gain.SO")
	os.WriteFile(file, []byte("x"), 0o644)
	if _, err := reg.Load(file, &nopCallbacks{}); err == nil {
		t.Error("expected error without a registered .so loader")
	}

	m := NewReferenceModule()
	reg.Register(".so", &MockLoader{Module: m})
	got, err := reg.Load(file, &nopCallbacks{})
	if err != nil {
		t.Fatalf("load via extension: %v", err)
	}
	if got != m {
		t.Error("expected module from registered loader")
	}
}

func TestStateStrings(t *testing.T) {
	if StateEditorOpen.String() != "editor_open" || State(42).String() != "state(42)" {
		t.Error("unexpected state names")
	}
	if !StateActive.CanProcess() || StateConfigured.CanProcess() {
		t.Error("unexpected CanProcess")
	}
	if StateUnloaded.CanDispatch() || !StateLoaded.CanDispatch() {
		t.Error("unexpected CanDispatch")
	}
}
