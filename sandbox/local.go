package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// grandchildren after the stage process itself has gone.
const waitDelay = 2 * time.Second

// LocalRunner implements CommandRunner by starting processes on the host
type LocalRunner struct {
	logger         *zap.Logger
	maxOutputBytes int
}

// LocalRunnerOption defines a functional option for LocalRunner
type LocalRunnerOption func(*LocalRunner)

// WithMaxOutputBytes caps the captured size of each output stream
func WithMaxOutputBytes(n int) LocalRunnerOption {
	return func(l *LocalRunner) {
		l.maxOutputBytes = n
	}
}

// NewLocalRunner creates a new LocalRunner
func NewLocalRunner(logger *zap.Logger, opts ...LocalRunnerOption) *LocalRunner {
	runner := &LocalRunner{
		logger:         logger,
		maxOutputBytes: 1 << 20,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// RunCommand executes the command with its stdin, bounded by cmd.Timeout.
//
// The stage deadline is detached from the caller's cancellation: once a
// stage starts it ends only by exiting or by timing out.
func (l *LocalRunner) RunCommand(ctx context.Context, cmd Command) (StageOutcome, error) {
	if len(cmd.Args) < 1 {
		return StageOutcome{}, ErrEmptyCommand
	}

	stageCtx := context.WithoutCancel(ctx)
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, cmd.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(stageCtx, cmd.Args[0], cmd.Args[1:]...) //nolint:gosec // Running the submitted program is the point
	proc.Dir = cmd.Dir
	proc.Env = buildEnv(cmd.Dir, cmd.Env)
	proc.Stdin = strings.NewReader(cmd.Stdin)
	proc.WaitDelay = waitDelay
	configureProcessGroup(proc)

	stdout := newLimitedBuffer(l.maxOutputBytes)
	stderr := newLimitedBuffer(l.maxOutputBytes)
	proc.Stdout = stdout
	proc.Stderr = stderr

	start := time.Now()
	err := proc.Run()
	outcome := StageOutcome{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	// If the context timed out, handle it explicitly
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		outcome.ExitCode = -1
		outcome.TimedOut = true
		l.logger.Debug("stage timed out",
			zap.String("program", cmd.Args[0]),
			zap.Duration("timeout", cmd.Timeout))
		return outcome, nil
	}

	if err != nil {
		var exitError *exec.ExitError
		switch {
		case errors.As(err, &exitError):
			outcome.ExitCode = exitError.ExitCode()
			outcome.Signal = exitSignal(exitError)
		case errors.Is(err, exec.ErrWaitDelay):
			// exited cleanly but a descendant kept the pipes open
		default:
			return StageOutcome{}, fmt.Errorf("failed to start %s: %w", cmd.Args[0], err)
		}
	}

	return outcome, nil
}

// buildEnv returns a minimal environment. The host environment is not
// inherited beyond PATH.
func buildEnv(dir string, extra []string) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
	}
	return append(env, extra...)
}
