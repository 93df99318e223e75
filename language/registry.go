package language

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"

	"github.com/isdmx/coderun/config"
)

var (
	// ErrUnsupported is returned for a language with no adapter
	ErrUnsupported = errors.New("unsupported language")
	// ErrToolchainMissing is returned when a required executable is not installed
	ErrToolchainMissing = errors.New("toolchain not available")
)

// Availability reports whether a language's toolchain is installed
type Availability struct {
	Language  string `json:"language"`
	Available bool   `json:"available"`
	Missing   string `json:"missing,omitempty"`
}

// Registry maps language names to adapters
type Registry struct {
	adapters  map[string]Adapter
	checkHost bool
	lookPath  func(string) (string, error)

	mu    sync.Mutex
	found map[string]bool
}

// RegistryOption defines a functional option for Registry
type RegistryOption func(*Registry)

// WithLookPath replaces exec.LookPath for toolchain lookup
func WithLookPath(lookPath func(string) (string, error)) RegistryOption {
	return func(r *Registry) {
		r.lookPath = lookPath
	}
}

// WithoutHostCheck disables host toolchain checks, e.g. when stages run in containers
func WithoutHostCheck() RegistryOption {
	return func(r *Registry) {
		r.checkHost = false
	}
}

// NewRegistry builds an adapter for every configured language
func NewRegistry(cfg *config.Config, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		adapters:  make(map[string]Adapter, len(cfg.Languages)),
		checkHost: cfg.Engine.Backend == "" || cfg.Engine.Backend == config.BackendLocal,
		lookPath:  exec.LookPath,
		found:     make(map[string]bool),
	}

	for _, opt := range opts {
		opt(r)
	}

	for name, lang := range cfg.Languages {
		adapter, err := NewAdapter(name, lang)
		if err != nil {
			return nil, err
		}
		r.adapters[name] = adapter
	}

	return r, nil
}

// Get returns the adapter for name
func (r *Registry) Get(name string) (Adapter, error) {
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return adapter, nil
}

// Names returns the supported language names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAvailable verifies every executable the adapter needs can be found.
// Positive results are cached; a missing tool is looked up again next time
// so installing it does not require a restart.
func (r *Registry) CheckAvailable(adapter Adapter) error {
	if !r.checkHost {
		return nil
	}
	for _, program := range adapter.Programs() {
		if !r.lookup(program) {
			return fmt.Errorf("%w: %s", ErrToolchainMissing, program)
		}
	}
	return nil
}

// Availability reports toolchain availability for every language
func (r *Registry) Availability() []Availability {
	names := r.Names()
	report := make([]Availability, 0, len(names))
	for _, name := range names {
		entry := Availability{Language: name, Available: true}
		if r.checkHost {
			for _, program := range r.adapters[name].Programs() {
				if !r.lookup(program) {
					entry.Available = false
					entry.Missing = program
					break
				}
			}
		}
		report = append(report, entry)
	}
	return report
}

func (r *Registry) lookup(program string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.found[program] {
		return true
	}
	if _, err := r.lookPath(program); err != nil {
		return false
	}
	r.found[program] = true
	return true
}
