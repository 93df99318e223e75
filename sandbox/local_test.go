//go:build unix

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestLocalRunnerRunCommand(t *testing.T) {
	sh := requireBinary(t, "sh")
	runner := NewLocalRunner(zaptest.NewLogger(t))

	t.Run("EmptyCommand", func(t *testing.T) {
		_, err := runner.RunCommand(context.Background(), Command{})
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})

	t.Run("StdinIsPiped", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{requireBinary(t, "cat")},
			Stdin:   "hello\nworld\n",
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Equal(t, "hello\nworld\n", outcome.Stdout)
		assert.False(t, outcome.TimedOut)
	})

	t.Run("ExitCodeAndStderr", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{sh, "-c", "echo oops >&2; exit 3"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, outcome.ExitCode)
		assert.Equal(t, "oops\n", outcome.Stderr)
		assert.False(t, outcome.TimedOut)
	})

	t.Run("KilledBySignal", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{sh, "-c", "kill -SEGV $$"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, -1, outcome.ExitCode)
		assert.Equal(t, "SIGSEGV", outcome.Signal)
		assert.False(t, outcome.TimedOut)
	})

	t.Run("NormalExitHasNoSignal", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{sh, "-c", "exit 2"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Empty(t, outcome.Signal)
	})

	t.Run("ArgumentsAreNotShellExpanded", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{requireBinary(t, "echo"), "$HOME", "; rm -rf /", "`id`"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "$HOME ; rm -rf / `id`\n", outcome.Stdout)
	})

	t.Run("WorkingDirectoryAndEnv", func(t *testing.T) {
		dir := t.TempDir()
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{sh, "-c", `pwd; echo "$GREETING"; echo "$HOME"`},
			Dir:     dir,
			Env:     []string{"GREETING=hello"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)

		resolved, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(outcome.Stdout), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, []string{dir, resolved}, lines[0])
		assert.Equal(t, "hello", lines[1])
		assert.Equal(t, dir, lines[2])
	})

	t.Run("HostEnvironmentNotInherited", func(t *testing.T) {
		t.Setenv("CODERUN_TEST_SECRET", "s3cr3t")
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{sh, "-c", `echo "[$CODERUN_TEST_SECRET]"`},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "[]\n", outcome.Stdout)
	})

	t.Run("MissingProgram", func(t *testing.T) {
		_, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{filepath.Join(t.TempDir(), "does-not-exist")},
			Timeout: 5 * time.Second,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start")
	})
}

func TestLocalRunnerTimeout(t *testing.T) {
	sh := requireBinary(t, "sh")
	requireBinary(t, "sleep")
	runner := NewLocalRunner(zaptest.NewLogger(t))

	t.Run("KillsProcessTree", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "survivor")
		start := time.Now()
		// The background grandchild must die with the group, or it would create the marker.
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:    []string{sh, "-c", "(sleep 2; touch " + marker + ") & sleep 30"},
			Timeout: 300 * time.Millisecond,
		})
		elapsed := time.Since(start)
		require.NoError(t, err)

		assert.True(t, outcome.TimedOut)
		assert.Equal(t, -1, outcome.ExitCode)
		assert.Less(t, elapsed, 300*time.Millisecond+waitDelay+time.Second)

		time.Sleep(2500 * time.Millisecond)
		_, statErr := os.Stat(marker)
		assert.True(t, os.IsNotExist(statErr), "grandchild survived the stage timeout")
	})

	t.Run("CallerCancellationDoesNotAbortStage", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		outcome, err := runner.RunCommand(ctx, Command{
			Args:    []string{sh, "-c", "sleep 0.2; echo done"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.False(t, outcome.TimedOut)
		assert.Equal(t, "done\n", outcome.Stdout)
	})
}

func TestLocalRunnerOutputLimit(t *testing.T) {
	sh := requireBinary(t, "sh")
	runner := NewLocalRunner(zaptest.NewLogger(t), WithMaxOutputBytes(16))

	outcome, err := runner.RunCommand(context.Background(), Command{
		Args:    []string{sh, "-c", "i=0; while [ $i -lt 100 ]; do echo 0123456789; i=$((i+1)); done"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "0123456789\n01234"+truncatedMarker, outcome.Stdout)
}
