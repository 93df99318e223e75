package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
)

// File permission constants
const (
	DirPermission  = 0o755
	FilePermission = 0o600
)

// Workspace is a scratch directory exclusively owned by one request
type Workspace struct {
	Dir   string
	files []string
}

// Path returns the absolute path of name inside the workspace
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Files returns the paths of the files written through the manager
func (w *Workspace) Files() []string {
	return append([]string(nil), w.files...)
}

// Manager creates and destroys workspaces
type Manager struct {
	logger *zap.Logger
	root   string
	fs     FileSystem
	active atomic.Int64

	// owner, when set, is handed the workspace and every file in it
	owner *owner
}

type owner struct {
	uid, gid int
}

// Option defines a functional option for Manager
type Option func(*Manager)

// WithFileSystem sets the FileSystem for Manager
func WithFileSystem(fs FileSystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithRoot sets the parent directory for new workspaces. An empty root
// means the system temporary directory.
func WithRoot(root string) Option {
	return func(m *Manager) {
		m.root = root
	}
}

// WithOwner makes uid:gid the owner of each workspace and the files written
// into it, for programs that run as a different user than the engine.
func WithOwner(uid, gid int) Option {
	return func(m *Manager) {
		m.owner = &owner{uid: uid, gid: gid}
	}
}

// NewManager creates a Manager with the real file system
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger: logger,
		fs:     RealFileSystem{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// NewManagerFromConfig creates a Manager rooted at engine.workspace_root
func NewManagerFromConfig(logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	root := cfg.Engine.WorkspaceRoot
	if root != "" {
		if err := os.MkdirAll(root, DirPermission); err != nil {
			return nil, fmt.Errorf("failed to create workspace root: %w", err)
		}
	}

	opts := []Option{WithRoot(root)}
	// A root engine runs container programs as nobody, which must own the workspace.
	if cfg.Engine.Backend != config.BackendLocal && cfg.Engine.Backend != "" && os.Geteuid() == 0 {
		opts = append(opts, WithOwner(config.NobodyID, config.NobodyID))
	}
	return NewManager(logger, opts...), nil
}

// Acquire creates a new, uniquely named workspace. tag is embedded in the
// directory name to ease correlation with logs.
func (m *Manager) Acquire(tag string) (*Workspace, error) {
	pattern := "coderun-*"
	if tag = sanitize(tag); tag != "" {
		pattern = "coderun-" + tag + "-*"
	}

	dir, err := m.fs.MkdirTemp(m.root, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	if err := m.chown(dir); err != nil {
		_ = m.fs.RemoveAll(dir)
		return nil, fmt.Errorf("failed to hand over workspace: %w", err)
	}
	m.active.Add(1)

	m.logger.Debug("workspace acquired", zap.String("path", dir))
	return &Workspace{Dir: dir}, nil
}

// WriteFile writes data to name inside the workspace and records the path
func (m *Manager) WriteFile(ws *Workspace, name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid workspace file name: %q", name)
	}

	path := ws.Path(name)
	if err := m.fs.WriteFile(path, data, FilePermission); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := m.chown(path); err != nil {
		return "", fmt.Errorf("failed to hand over %s: %w", name, err)
	}
	ws.files = append(ws.files, path)
	return path, nil
}

// Release removes the workspace and everything in it. It is safe to call
// with a nil workspace and never returns an error.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil || ws.Dir == "" {
		return
	}

	if err := m.fs.RemoveAll(ws.Dir); err != nil && !os.IsNotExist(err) {
		m.logger.Error("failed to remove workspace", zap.String("path", ws.Dir), zap.Error(err))
	} else {
		m.logger.Debug("workspace released", zap.String("path", ws.Dir))
	}
	m.active.Add(-1)
	ws.Dir = ""
}

// Active returns the number of workspaces acquired and not yet released
func (m *Manager) Active() int64 {
	return m.active.Load()
}

func (m *Manager) chown(path string) error {
	if m.owner == nil {
		return nil
	}
	return m.fs.Chown(path, m.owner.uid, m.owner.gid)
}

func sanitize(tag string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return -1
		}
	}, tag)
}
