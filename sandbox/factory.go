package sandbox

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
)

// NewRunner creates the CommandRunner for the configured backend
func NewRunner(logger *zap.Logger, cfg *config.Config) (CommandRunner, error) {
	local := NewLocalRunner(logger, WithMaxOutputBytes(cfg.Engine.MaxOutputBytes))

	switch cfg.Engine.Backend {
	case config.BackendLocal:
		return local, nil
	case config.BackendDocker, config.BackendPodman:
		return NewContainerRunner(logger, cfg.Engine.Backend, ContainerConfig{
			MemoryMB:          cfg.Engine.MemoryMB,
			NetworkEnabled:    cfg.Engine.NetworkEnabled,
			User:              hostUser(),
			KeepUserNamespace: cfg.Engine.Backend == config.BackendPodman && os.Geteuid() > 0,
		}, local), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Engine.Backend)
	}
}

// hostUser returns the "uid:gid" that owns every workspace: the engine's
// own ids, or nobody when the engine runs as root.
func hostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid <= 0 || gid < 0 {
		return fmt.Sprintf("%d:%d", config.NobodyID, config.NobodyID)
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}
