package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/isdmx/coderun/riskfilter"
)

// Status identifies the terminal state a request reached
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusInvalidRequest Status = "invalid_request"
	StatusRejected       Status = "rejected"
	StatusCompileFailed  Status = "compile_failed"
	StatusRunFailed      Status = "run_failed"
	StatusTimedOut       Status = "timed_out"
	StatusInternalError  Status = "internal_error"
)

// Caller-facing messages
const (
	MessageInternalError  = "Internal server error"
	MessageRunTimeout     = "Execution timeout exceeded"
	MessageCompileTimeout = "Compilation timeout exceeded"
	compileErrorPrefix    = "Compilation Error:\n"
)

// Request is one inbound execution request
type Request struct {
	Code     string `json:"code"`
	Input    string `json:"input"`
	Language string `json:"language"`
}

// Result is the uniform envelope returned for every request
type Result struct {
	Success             bool
	Output              string
	Error               string
	ExecutionTimeMillis int64
	// MemoryUsedBytes is not measured by the engine and is always nil.
	MemoryUsedBytes *int64
	Status          Status
}

// MarshalJSON emits output only on success and error only on failure
func (r Result) MarshalJSON() ([]byte, error) {
	type envelope struct {
		Success             bool    `json:"success"`
		Output              *string `json:"output,omitempty"`
		Error               *string `json:"error,omitempty"`
		ExecutionTimeMillis int64   `json:"executionTimeMillis"`
		MemoryUsedBytes     *int64  `json:"memoryUsedBytes"`
		Status              Status  `json:"status"`
	}

	e := envelope{
		Success:             r.Success,
		ExecutionTimeMillis: r.ExecutionTimeMillis,
		MemoryUsedBytes:     r.MemoryUsedBytes,
		Status:              r.Status,
	}
	if r.Success {
		e.Output = &r.Output
	} else {
		e.Error = &r.Error
	}
	return json.Marshal(e)
}

func millis(elapsed time.Duration) int64 {
	return elapsed.Milliseconds()
}

// The constructors below leave ExecutionTimeMillis unset; Engine.Execute
// stamps it once the request reaches its terminal state.

func succeeded(output string) Result {
	return Result{Success: true, Output: output, Status: StatusSucceeded}
}

func failed(status Status, message string) Result {
	return Result{Success: false, Error: message, Status: status}
}

// InvalidRequest builds the envelope for a malformed request
func InvalidRequest(message string) Result {
	return failed(StatusInvalidRequest, message)
}

func rejected() Result {
	return failed(StatusRejected, riskfilter.RejectionMessage)
}

func compileFailed(stdout, stderr string, exitCode int) Result {
	diagnostics := stderr
	if strings.TrimSpace(diagnostics) == "" {
		diagnostics = stdout
	}
	if strings.TrimSpace(diagnostics) == "" {
		diagnostics = fmt.Sprintf("compiler exited with code %d", exitCode)
	}
	return failed(StatusCompileFailed, compileErrorPrefix+diagnostics)
}

func runFailed(stderr string, exitCode int, signal string) Result {
	switch {
	case strings.TrimSpace(stderr) != "":
		return failed(StatusRunFailed, stderr)
	case signal != "":
		return failed(StatusRunFailed, fmt.Sprintf("Execution failed: process terminated by signal %s", signal))
	default:
		return failed(StatusRunFailed, fmt.Sprintf("Execution failed: process exited with code %d", exitCode))
	}
}

func timedOut(message string) Result {
	return failed(StatusTimedOut, message)
}

func internalError(message string) Result {
	return failed(StatusInternalError, message)
}
