//go:build unix

package engine

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/metrics"
	"github.com/isdmx/coderun/riskfilter"
	"github.com/isdmx/coderun/sandbox"
	"github.com/isdmx/coderun/workspace"
)

// newLocalEngine wires an Engine to the host toolchains
func newLocalEngine(t *testing.T, runTimeoutSec int) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := testConfig(t.TempDir())
	cfg.Engine.RunTimeoutSec = runTimeoutSec

	filter, err := riskfilter.NewFromConfig(cfg)
	require.NoError(t, err)
	registry, err := language.NewRegistry(cfg)
	require.NoError(t, err)
	workspaces, err := workspace.NewManagerFromConfig(logger, cfg)
	require.NoError(t, err)

	runner := sandbox.NewLocalRunner(logger)
	return New(logger, cfg, filter, registry, workspaces, runner, metrics.NewCollector(&cfg.Metrics, prometheus.NewRegistry()))
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
}

func TestScenarioPythonHello(t *testing.T) {
	requireTools(t, "python3")
	eng := newLocalEngine(t, 20)

	result := eng.Execute(context.Background(), Request{Code: "print('hi')", Language: "python"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "hi\n", result.Output)
	assert.Less(t, result.ExecutionTimeMillis, int64(20000))
}

func TestScenarioPythonStdin(t *testing.T) {
	requireTools(t, "python3")
	eng := newLocalEngine(t, 20)

	result := eng.Execute(context.Background(), Request{
		Code:     "a, b = map(int, input().split())\nprint(a + b)",
		Input:    "2 3\n",
		Language: "python",
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "5\n", result.Output)
}

func TestScenarioCppNonZeroExit(t *testing.T) {
	requireTools(t, "g++")
	eng := newLocalEngine(t, 20)

	result := eng.Execute(context.Background(), Request{Code: "int main(){return 1;}", Language: "cpp"})

	assert.False(t, result.Success)
	assert.Equal(t, StatusRunFailed, result.Status)
	assert.Equal(t, "Execution failed: process exited with code 1", result.Error)
}

func TestScenarioCppCompileError(t *testing.T) {
	requireTools(t, "g++")
	eng := newLocalEngine(t, 20)

	result := eng.Execute(context.Background(), Request{Code: "int main(){ return undefined_name; }", Language: "cpp"})

	assert.Equal(t, StatusCompileFailed, result.Status)
	assert.Contains(t, result.Error, "Compilation Error:\n")
	assert.Contains(t, result.Error, "undefined_name")
}

func TestScenarioJavaPublicClass(t *testing.T) {
	requireTools(t, "javac", "java")
	eng := newLocalEngine(t, 20)

	code := "public class Foo { public static void main(String[] a){ System.out.println(1+1); } }"
	result := eng.Execute(context.Background(), Request{Code: code, Language: "java"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "2\n", result.Output)
}

func TestScenarioCppInfiniteLoop(t *testing.T) {
	requireTools(t, "g++")
	eng := newLocalEngine(t, 1)

	start := time.Now()
	result := eng.Execute(context.Background(), Request{Code: "int main(){ while(true){} }", Language: "cpp"})

	assert.Equal(t, StatusTimedOut, result.Status)
	assert.Equal(t, "Execution timeout exceeded", result.Error)
	// Compile time plus the 1s run cap plus kill overhead.
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestScenarioCallerCancelDoesNotShortenRun(t *testing.T) {
	requireTools(t, "python3")
	eng := newLocalEngine(t, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := eng.Execute(ctx, Request{Code: "print('still runs')", Language: "python"})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "still runs\n", result.Output)
}

func TestScenarioWorkspacesAreIsolated(t *testing.T) {
	requireTools(t, "python3")
	eng := newLocalEngine(t, 20)

	first := eng.Execute(context.Background(), Request{
		Code:     "with open('marker.txt', 'w') as f:\n    f.write('left behind')\nprint('written')",
		Language: "python",
	})
	require.True(t, first.Success, first.Error)
	require.Equal(t, "written\n", first.Output)

	second := eng.Execute(context.Background(), Request{
		Code:     "try:\n    open('marker.txt')\n    print('present')\nexcept FileNotFoundError:\n    print('absent')",
		Language: "python",
	})
	require.True(t, second.Success, second.Error)
	assert.Equal(t, "absent\n", second.Output)
}

func TestScenarioSegfaultReportsSignal(t *testing.T) {
	requireTools(t, "g++")
	eng := newLocalEngine(t, 20)

	code := "int main(){ volatile int *p = nullptr; *p = 1; return 0; }"
	result := eng.Execute(context.Background(), Request{Code: code, Language: "cpp"})

	assert.Equal(t, StatusRunFailed, result.Status)
	assert.Equal(t, "Execution failed: process terminated by signal SIGSEGV", result.Error)
}
