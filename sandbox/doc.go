// Package sandbox runs compile and run stages for untrusted programs.
//
// The package defines the CommandRunner interface and its implementations:
// LocalRunner starts the toolchain directly on the host (the engine is
// expected to already run inside an isolated slot), ContainerRunner wraps the
// same argv in a docker or podman invocation. StagedExecutor drives a
// Toolchain through an optional compile stage and a run stage, each under
// its own timeout, and reports which terminal phase was reached.
//
// Commands are always argv slices handed to the kernel directly; nothing is
// interpreted by a shell.
//
// Usage:
//
//	runner, err := sandbox.NewRunner(logger, cfg)
//	executor := sandbox.NewStagedExecutor(logger, runner, 10*time.Second, 20*time.Second)
//	report, err := executor.Execute(ctx, sandbox.Job{
//	    Toolchain:  adapter,
//	    Dir:        ws.Dir,
//	    SourcePath: sourcePath,
//	    Input:      "42\n",
//	})
package sandbox
