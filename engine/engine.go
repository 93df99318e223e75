package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/logger"
	"github.com/isdmx/coderun/metrics"
	"github.com/isdmx/coderun/riskfilter"
	"github.com/isdmx/coderun/sandbox"
	"github.com/isdmx/coderun/workspace"
)

// UnsupportedLanguageLabel is the metrics label for unregistered languages
const UnsupportedLanguageLabel = "unsupported"

// Executor runs one request to completion
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

// Engine is the execution orchestration engine
type Engine struct {
	logger          *zap.Logger
	filter          *riskfilter.Filter
	registry        *language.Registry
	workspaces      *workspace.Manager
	executor        *sandbox.StagedExecutor
	metrics         *metrics.Collector
	maxCodeBytes    int
	defaultLanguage string
	now             func() time.Time
}

// New creates an Engine from its collaborators
func New(
	logger *zap.Logger,
	cfg *config.Config,
	filter *riskfilter.Filter,
	registry *language.Registry,
	workspaces *workspace.Manager,
	runner sandbox.CommandRunner,
	collector *metrics.Collector,
) *Engine {
	return &Engine{
		logger:          logger,
		filter:          filter,
		registry:        registry,
		workspaces:      workspaces,
		executor:        sandbox.NewStagedExecutor(logger, runner, cfg.CompileTimeout(), cfg.RunTimeout()),
		metrics:         collector,
		maxCodeBytes:    cfg.Engine.MaxCodeBytes,
		defaultLanguage: cfg.Engine.DefaultLanguage,
		now:             time.Now,
	}
}

// Execute runs req and returns exactly one Result. It never returns an
// error: engine faults are reported as StatusInternalError.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	start := e.now()
	requestID := uuid.NewString()

	langName := req.Language
	if langName == "" {
		langName = e.defaultLanguage
	}
	log := logger.ForRequest(e.logger, requestID, langName)
	log.Debug("execution request received", zap.Int("code_bytes", len(req.Code)), zap.Int("input_bytes", len(req.Input)))

	result := e.execute(ctx, log, requestID, langName, req)

	elapsed := e.now().Sub(start)
	result.ExecutionTimeMillis = millis(elapsed)
	e.metrics.RecordExecution(e.metricsLabel(langName), string(result.Status), elapsed)

	log.Info("execution finished",
		zap.String(logger.FieldStatus, string(result.Status)),
		zap.Int64("execution_time_ms", result.ExecutionTimeMillis))
	return result
}

// metricsLabel keeps the language label bounded by the configured set
func (e *Engine) metricsLabel(langName string) string {
	if _, err := e.registry.Get(langName); err != nil {
		return UnsupportedLanguageLabel
	}
	return langName
}

func (e *Engine) execute(ctx context.Context, log *zap.Logger, requestID, langName string, req Request) Result {
	if strings.TrimSpace(req.Code) == "" {
		return InvalidRequest("Code is required")
	}
	if len(req.Code) > e.maxCodeBytes {
		return InvalidRequest(fmt.Sprintf("Code size exceeds maximum limit (%dKB)", e.maxCodeBytes/1000))
	}

	adapter, err := e.registry.Get(langName)
	if errors.Is(err, language.ErrUnsupported) {
		return InvalidRequest(fmt.Sprintf("Unsupported language: %s", langName))
	}
	if err != nil {
		log.Error("language lookup failed", zap.Error(err))
		return internalError(MessageInternalError)
	}

	if verdict := e.filter.Check(req.Code, langName); !verdict.Allowed {
		e.metrics.RecordRejection(langName)
		log.Info("code rejected by risk filter", zap.String("pattern", verdict.MatchedPattern))
		return rejected()
	}

	if err := e.registry.CheckAvailable(adapter); err != nil {
		log.Error("toolchain unavailable", zap.Error(err))
		return internalError(fmt.Sprintf("%s is not available on this host: %v", langName, err))
	}

	report, err := e.runInWorkspace(ctx, requestID, adapter, req)
	if err != nil {
		log.Error("execution pipeline failed", zap.Error(err))
		return internalError(MessageInternalError)
	}

	e.recordStages(langName, report)
	return resultFromReport(report)
}

// runInWorkspace owns the workspace for the duration of the compile and run
// stages and releases it on every path, including panics.
func (e *Engine) runInWorkspace(ctx context.Context, requestID string, adapter language.Adapter, req Request) (report sandbox.Report, err error) {
	ws, err := e.workspaces.Acquire(requestID)
	if err != nil {
		return sandbox.Report{}, err
	}
	e.metrics.SetActiveWorkspaces(e.workspaces.Active())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during execution: %v", r)
		}
		e.workspaces.Release(ws)
		e.metrics.SetActiveWorkspaces(e.workspaces.Active())
	}()

	sourcePath, err := adapter.Materialize(e.workspaces, ws, req.Code)
	if err != nil {
		return sandbox.Report{}, err
	}

	return e.executor.Execute(ctx, sandbox.Job{
		Toolchain:  adapter,
		Dir:        ws.Dir,
		SourcePath: sourcePath,
		Input:      req.Input,
		Env:        adapter.Environment(),
		Image:      adapter.Image(),
	})
}

func (e *Engine) recordStages(langName string, report sandbox.Report) {
	if report.Compile != nil {
		e.metrics.RecordStage(langName, "compile", report.Compile.Elapsed)
	}
	if report.Run != nil {
		e.metrics.RecordStage(langName, "run", report.Run.Elapsed)
	}
}

// resultFromReport maps the executor's terminal phase to its envelope.
// Execution time is filled in by Execute.
func resultFromReport(report sandbox.Report) Result {
	switch report.Phase {
	case sandbox.PhaseCompileFailed:
		return compileFailed(report.Compile.Stdout, report.Compile.Stderr, report.Compile.ExitCode)
	case sandbox.PhaseCompileTimedOut:
		return timedOut(MessageCompileTimeout)
	case sandbox.PhaseRunFailed:
		return runFailed(report.Run.Stderr, report.Run.ExitCode, report.Run.Signal)
	case sandbox.PhaseRunTimedOut:
		return timedOut(MessageRunTimeout)
	case sandbox.PhaseSucceeded:
		return succeeded(report.Run.Stdout)
	default:
		return internalError(MessageInternalError)
	}
}

// IsClientError reports whether the result is a fault in the request itself
func IsClientError(r Result) bool {
	return r.Status == StatusInvalidRequest || r.Status == StatusRejected
}
