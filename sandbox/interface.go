package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyCommand is returned when a command has no program to run
var ErrEmptyCommand = errors.New("no command provided")

// Command is a fully resolved process invocation. Args[0] is the program.
type Command struct {
	Args    []string
	Dir     string
	Env     []string // KEY=VALUE pairs added to the minimal base environment
	Stdin   string
	Timeout time.Duration
	Image   string // container image, ignored by LocalRunner
}

// StageOutcome is the captured result of one compile or run stage
type StageOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	TimedOut bool
	// Signal names the signal that terminated the process, e.g. "SIGSEGV".
	Signal string
}

// CommandRunner defines an interface for executing system commands.
//
// A timed out command is reported through StageOutcome.TimedOut with a nil
// error; errors are reserved for failures to start or supervise the process.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd Command) (StageOutcome, error)
}

// Toolchain produces the argv for each stage of one language
type Toolchain interface {
	Name() string
	NeedsCompilation() bool
	CompileCommand(sourcePath string) []string
	RunCommand(sourcePath string) []string
}
