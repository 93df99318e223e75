package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	containerWorkdir = "/workdir"
	killTimeout      = 5 * time.Second
)

// ContainerConfig holds resource settings for container backends
type ContainerConfig struct {
	MemoryMB       int
	NetworkEnabled bool
	// User is the "uid:gid" the program runs as. It should own the workspace
	// so the program can read its source and write build output there.
	User string
	// KeepUserNamespace maps the host uid into the container unchanged
	// (rootless podman).
	KeepUserNamespace bool
}

// ContainerRunner implements CommandRunner by wrapping each command in a
// docker or podman "run" invocation. Both CLIs accept the same flags.
type ContainerRunner struct {
	logger *zap.Logger
	binary string
	config ContainerConfig
	inner  CommandRunner
}

// NewContainerRunner creates a ContainerRunner driving the given CLI binary
// ("docker" or "podman"). inner starts the CLI process itself.
func NewContainerRunner(logger *zap.Logger, binary string, config ContainerConfig, inner CommandRunner) *ContainerRunner {
	return &ContainerRunner{
		logger: logger,
		binary: binary,
		config: config,
		inner:  inner,
	}
}

// RunCommand runs cmd inside a fresh container with the workspace mounted at
// /workdir. On timeout the container is killed explicitly, since killing the
// CLI client does not stop it.
func (c *ContainerRunner) RunCommand(ctx context.Context, cmd Command) (StageOutcome, error) {
	if len(cmd.Args) < 1 {
		return StageOutcome{}, ErrEmptyCommand
	}
	if cmd.Image == "" {
		return StageOutcome{}, fmt.Errorf("no container image configured for %s", cmd.Args[0])
	}

	containerName := "coderun-" + uuid.NewString()
	wrapped := cmd
	wrapped.Args = c.buildArgs(containerName, cmd)
	wrapped.Env = nil

	outcome, err := c.inner.RunCommand(ctx, wrapped)
	if err != nil {
		return StageOutcome{}, fmt.Errorf("failed to execute container: %w", err)
	}

	if outcome.TimedOut {
		killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), killTimeout)
		defer cancel()
		//nolint:gosec // Binary is fixed by configuration
		if killErr := exec.CommandContext(killCtx, c.binary, "kill", containerName).Run(); killErr != nil {
			c.logger.Warn("failed to kill container after timeout", zap.String("container", containerName), zap.Error(killErr))
		}
	}

	return outcome, nil
}

func (c *ContainerRunner) buildArgs(containerName string, cmd Command) []string {
	// Prepare run command with security restrictions
	args := []string{
		c.binary, "run",
		"--name", containerName,
		"--rm",
		"-i",
		"-v", fmt.Sprintf("%s:%s", cmd.Dir, containerWorkdir),
		"--workdir", containerWorkdir,
		"--memory", fmt.Sprintf("%dm", c.config.MemoryMB),
		"--pids-limit", "128",
		"--ulimit", "fsize=100000000",
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
	}

	if c.config.User != "" {
		args = append(args, "--user", c.config.User)
	}
	if c.config.KeepUserNamespace {
		args = append(args, "--userns", "keep-id")
	}

	if c.config.NetworkEnabled {
		args = append(args, "--network", "bridge")
	} else {
		args = append(args, "--network", "none")
	}

	args = append(args, "-e", "HOME="+containerWorkdir)
	for _, kv := range cmd.Env {
		args = append(args, "-e", kv)
	}

	args = append(args, cmd.Image)

	// The in-container timeout stops the program even if the kill below is lost.
	if cmd.Timeout > 0 {
		secs := int(cmd.Timeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, "timeout", "-s", "KILL", strconv.Itoa(secs))
	}

	for _, arg := range cmd.Args {
		args = append(args, toContainerPath(cmd.Dir, arg))
	}
	return args
}

// toContainerPath rewrites host workspace paths to their mount point
func toContainerPath(hostDir, arg string) string {
	if hostDir == "" {
		return arg
	}
	if arg == hostDir {
		return containerWorkdir
	}
	prefix := hostDir + string(filepath.Separator)
	if strings.HasPrefix(arg, prefix) {
		return containerWorkdir + "/" + filepath.ToSlash(strings.TrimPrefix(arg, prefix))
	}
	return arg
}
