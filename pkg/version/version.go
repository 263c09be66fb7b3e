package version

import "fmt"

// Version, GitCommit and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/shusefs/shusefs/pkg/version.Version=v1.0.0 \
//	  -X github.com/shusefs/shusefs/pkg/version.GitCommit=abc1234 \
//	  -X github.com/shusefs/shusefs/pkg/version.BuildDate=2026-01-01"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a single-line human-readable build identifier.
func Info() string {
	return fmt.Sprintf("shusefs %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
