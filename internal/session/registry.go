package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// StubScheme prefixes paths served by the built-in stub loader, e.g. "stub:reference".
const StubScheme = "stub:"

// Registry routes a path to the Loader registered for its file extension.
// Native binary loaders register themselves by extension; paths starting with
// StubScheme go to the stub loader without touching the filesystem.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Loader
	stub  Loader
}

// NewRegistry creates a registry whose stub loader is stub (may be nil).
func NewRegistry(stub Loader) *Registry {
	return &Registry{
		byExt: make(map[string]Loader),
		stub:  stub,
	}
}

// Register binds a loader to a file extension such as ".so" or ".vst3".
func (r *Registry) Register(ext string, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[strings.ToLower(ext)] = l
}

// Load implements Loader.
func (r *Registry) Load(path string, cb HostCallbacks) (Module, error) {
	if name, ok := strings.CutPrefix(path, StubScheme); ok {
		if r.stub == nil {
			return nil, fmt.Errorf("no stub loader registered")
		}
		return r.stub.Load(name, cb)
	}

	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	l, ok := r.byExt[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader registered for %q modules", ext)
	}
	return l.Load(path, cb)
}
