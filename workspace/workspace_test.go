package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/coderun/config"
)

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	mkdirTempErr error
	writeFileErr error
	removeAllErr error
	chownErr     error
	removed      []string
	written      map[string][]byte
	chowned      []string
}

func (m *MockFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	if m.mkdirTempErr != nil {
		return "", m.mkdirTempErr
	}
	return filepath.Join(dir, strings.Replace(pattern, "*", "0001", 1)), nil
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	if m.writeFileErr != nil {
		return m.writeFileErr
	}
	if m.written == nil {
		m.written = make(map[string][]byte)
	}
	m.written[filename] = data
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.removed = append(m.removed, path)
	return m.removeAllErr
}

func (m *MockFileSystem) Chown(path string, uid, gid int) error {
	if m.chownErr != nil {
		return m.chownErr
	}
	m.chowned = append(m.chowned, fmt.Sprintf("%s=%d:%d", path, uid, gid))
	return nil
}

func TestAcquireRelease(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(zaptest.NewLogger(t), WithRoot(root))

	ws, err := manager.Acquire("req-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir), "coderun-req-1-"))
	assert.Equal(t, root, filepath.Dir(ws.Dir))
	assert.DirExists(t, ws.Dir)
	assert.EqualValues(t, 1, manager.Active())

	path, err := manager.WriteFile(ws, "main.py", []byte("print('hi')"))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, []string{path}, ws.Files())

	// Files the program created itself are removed too.
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Dir, "nested", "deeper"), DirPermission))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "nested", "deeper", "out.txt"), []byte("x"), FilePermission))

	dir := ws.Dir
	manager.Release(ws)
	assert.NoDirExists(t, dir)
	assert.EqualValues(t, 0, manager.Active())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquireIsUnique(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), WithRoot(t.TempDir()))

	a, err := manager.Acquire("same")
	require.NoError(t, err)
	defer manager.Release(a)

	b, err := manager.Acquire("same")
	require.NoError(t, err)
	defer manager.Release(b)

	assert.NotEqual(t, a.Dir, b.Dir)

	_, err = manager.WriteFile(a, "secret.txt", []byte("a"))
	require.NoError(t, err)
	assert.NoFileExists(t, b.Path("secret.txt"))
}

func TestReleaseTolerance(t *testing.T) {
	t.Run("AlreadyRemoved", func(t *testing.T) {
		manager := NewManager(zaptest.NewLogger(t), WithRoot(t.TempDir()))
		ws, err := manager.Acquire("")
		require.NoError(t, err)
		require.NoError(t, os.RemoveAll(ws.Dir))

		assert.NotPanics(t, func() { manager.Release(ws) })
	})

	t.Run("NilWorkspace", func(t *testing.T) {
		manager := NewManager(zaptest.NewLogger(t))
		assert.NotPanics(t, func() { manager.Release(nil) })
	})

	t.Run("DoubleRelease", func(t *testing.T) {
		mockFS := &MockFileSystem{}
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(mockFS))
		ws, err := manager.Acquire("x")
		require.NoError(t, err)

		manager.Release(ws)
		manager.Release(ws)
		assert.Len(t, mockFS.removed, 1)
		assert.EqualValues(t, 0, manager.Active())
	})

	t.Run("RemoveErrorIsSwallowed", func(t *testing.T) {
		mockFS := &MockFileSystem{removeAllErr: errors.New("device busy")}
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(mockFS), WithRoot("/scratch"))
		ws, err := manager.Acquire("x")
		require.NoError(t, err)

		assert.NotPanics(t, func() { manager.Release(ws) })
		assert.Equal(t, []string{"/scratch/coderun-x-0001"}, mockFS.removed)
	})
}

func TestAcquireError(t *testing.T) {
	mockFS := &MockFileSystem{mkdirTempErr: errors.New("no space left on device")}
	manager := NewManager(zaptest.NewLogger(t), WithFileSystem(mockFS))

	ws, err := manager.Acquire("x")
	require.Error(t, err)
	assert.Nil(t, ws)
	assert.Contains(t, err.Error(), "failed to create workspace")
	assert.EqualValues(t, 0, manager.Active())
}

func TestWriteFile(t *testing.T) {
	t.Run("RejectsPathNames", func(t *testing.T) {
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(&MockFileSystem{}))
		ws, err := manager.Acquire("x")
		require.NoError(t, err)

		for _, name := range []string{"", "../escape.py", "dir/main.py"} {
			_, err := manager.WriteFile(ws, name, []byte("x"))
			assert.Error(t, err, name)
		}
		assert.Empty(t, ws.Files())
	})

	t.Run("WriteError", func(t *testing.T) {
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(&MockFileSystem{writeFileErr: errors.New("read-only")}))
		ws, err := manager.Acquire("x")
		require.NoError(t, err)

		_, err = manager.WriteFile(ws, "main.c", []byte("int main(){}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write main.c")
	})
}

func TestSanitizeTag(t *testing.T) {
	assert.Equal(t, "abc-123", sanitize("abc-123"))
	assert.Equal(t, "etcpasswd", sanitize("../etc/passwd"))
	assert.Equal(t, "", sanitize("*/*"))
}

func TestNewManagerFromConfig(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work", "spaces")
	cfg := &config.Config{Engine: config.EngineConfig{WorkspaceRoot: root}}

	manager, err := NewManagerFromConfig(zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	assert.DirExists(t, root)

	ws, err := manager.Acquire("cfg")
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(ws.Dir))
	manager.Release(ws)
}

func TestWithOwner(t *testing.T) {
	t.Run("DirectoryAndFilesAreHandedOver", func(t *testing.T) {
		mockFS := &MockFileSystem{}
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(mockFS), WithRoot("/scratch"), WithOwner(65534, 65534))

		ws, err := manager.Acquire("x")
		require.NoError(t, err)
		_, err = manager.WriteFile(ws, "main.c", []byte("int main(){}"))
		require.NoError(t, err)

		assert.Equal(t, []string{
			"/scratch/coderun-x-0001=65534:65534",
			"/scratch/coderun-x-0001/main.c=65534:65534",
		}, mockFS.chowned)
	})

	t.Run("NoOwnerNoChown", func(t *testing.T) {
		mockFS := &MockFileSystem{}
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(mockFS))

		ws, err := manager.Acquire("x")
		require.NoError(t, err)
		_, err = manager.WriteFile(ws, "main.py", []byte("print(1)"))
		require.NoError(t, err)

		assert.Empty(t, mockFS.chowned)
	})

	t.Run("ChownFailureRemovesWorkspace", func(t *testing.T) {
		mockFS := &MockFileSystem{chownErr: errors.New("operation not permitted")}
		manager := NewManager(zaptest.NewLogger(t), WithFileSystem(mockFS), WithRoot("/scratch"), WithOwner(1, 1))

		ws, err := manager.Acquire("x")
		require.Error(t, err)
		assert.Nil(t, ws)
		assert.Equal(t, []string{"/scratch/coderun-x-0001"}, mockFS.removed)
		assert.EqualValues(t, 0, manager.Active())
	})
}
