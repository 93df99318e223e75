package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Phase is the terminal state reached by StagedExecutor
type Phase int

const (
	PhaseSucceeded Phase = iota
	PhaseCompileFailed
	PhaseCompileTimedOut
	PhaseRunFailed
	PhaseRunTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseSucceeded:
		return "succeeded"
	case PhaseCompileFailed:
		return "compile_failed"
	case PhaseCompileTimedOut:
		return "compile_timed_out"
	case PhaseRunFailed:
		return "run_failed"
	case PhaseRunTimedOut:
		return "run_timed_out"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Job is one request's worth of work for StagedExecutor
type Job struct {
	Toolchain  Toolchain
	Dir        string
	SourcePath string
	Input      string
	Env        []string
	Image      string
}

// Report describes how far a Job got. Compile is nil when the toolchain
// needs no compilation; Run is nil when compilation did not succeed.
type Report struct {
	Phase   Phase
	Compile *StageOutcome
	Run     *StageOutcome
}

// StagedExecutor runs the compile stage (if any) and then the run stage
type StagedExecutor struct {
	logger         *zap.Logger
	runner         CommandRunner
	compileTimeout time.Duration
	runTimeout     time.Duration
}

// NewStagedExecutor creates a StagedExecutor with per-stage timeouts
func NewStagedExecutor(logger *zap.Logger, runner CommandRunner, compileTimeout, runTimeout time.Duration) *StagedExecutor {
	return &StagedExecutor{
		logger:         logger,
		runner:         runner,
		compileTimeout: compileTimeout,
		runTimeout:     runTimeout,
	}
}

// Execute drives the job through its stages. Each stage runs exactly once.
func (e *StagedExecutor) Execute(ctx context.Context, job Job) (Report, error) {
	var report Report
	log := e.logger.With(zap.String("language", job.Toolchain.Name()))

	if job.Toolchain.NeedsCompilation() {
		compileArgs := job.Toolchain.CompileCommand(job.SourcePath)
		log.Debug("compile stage started", zap.Strings("args", compileArgs))

		outcome, err := e.runner.RunCommand(ctx, Command{
			Args:    compileArgs,
			Dir:     job.Dir,
			Env:     job.Env,
			Timeout: e.compileTimeout,
			Image:   job.Image,
		})
		if err != nil {
			return Report{}, fmt.Errorf("compile stage: %w", err)
		}
		report.Compile = &outcome

		log.Debug("compile stage finished",
			zap.Int("exit_code", outcome.ExitCode),
			zap.Bool("timed_out", outcome.TimedOut),
			zap.Duration("elapsed", outcome.Elapsed))

		switch {
		case outcome.TimedOut:
			report.Phase = PhaseCompileTimedOut
			return report, nil
		case outcome.ExitCode != 0:
			report.Phase = PhaseCompileFailed
			return report, nil
		}
	}

	runArgs := job.Toolchain.RunCommand(job.SourcePath)
	log.Debug("run stage started", zap.Strings("args", runArgs))

	outcome, err := e.runner.RunCommand(ctx, Command{
		Args:    runArgs,
		Dir:     job.Dir,
		Env:     job.Env,
		Stdin:   job.Input,
		Timeout: e.runTimeout,
		Image:   job.Image,
	})
	if err != nil {
		return Report{}, fmt.Errorf("run stage: %w", err)
	}
	report.Run = &outcome

	log.Debug("run stage finished",
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Duration("elapsed", outcome.Elapsed))

	switch {
	case outcome.TimedOut:
		report.Phase = PhaseRunTimedOut
	case outcome.ExitCode != 0:
		report.Phase = PhaseRunFailed
	default:
		report.Phase = PhaseSucceeded
	}
	return report, nil
}

// RunTimeout returns the configured run stage timeout
func (e *StagedExecutor) RunTimeout() time.Duration {
	return e.runTimeout
}

// CompileTimeout returns the configured compile stage timeout
func (e *StagedExecutor) CompileTimeout() time.Duration {
	return e.compileTimeout
}
