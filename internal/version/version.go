package version

import "fmt"

var (
	// Version is the semantic version of the tta binaries. Overridden via -ldflags "-X".
	Version = "1.0.0"
	// Commit is the git commit hash injected at build time.
	Commit = "dev"
	// BuildDate is the build timestamp injected at build time.
	BuildDate = "unknown"
)

// Full returns the version line printed by `tta version` and the daemon.
func Full() string {
	return fmt.Sprintf("%s (commit:%s, built:%s)", Version, Commit, BuildDate)
}

// Short returns just the semantic version, used in the shell banner.
func Short() string {
	return "v" + Version
}
