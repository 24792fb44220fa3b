// Package sandbox holds the capability set exposed to generated scripts and
// the executors that compile and run them against it.
package sandbox

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/texttoaction/tta/internal/config"
)

// New builds the executor selected by cfg.Backend.
func New(cfg config.SandboxConfig, caps CapabilitySet, logger *zap.Logger) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "process":
		return NewProcessExecutor(cfg.Interpreter, cfg.WorkingDir, caps, logger)
	case "docker":
		return NewDockerExecutor(DockerOptions{
			Image:    cfg.Docker.Image,
			Pull:     cfg.Docker.Pull,
			Network:  cfg.Docker.Network,
			MemoryMB: cfg.Docker.MemoryMB,
		}, caps, logger)
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Backend)
	}
}
