package core

import (
	"fmt"
	"strings"
)

// Build metadata, injected with:
//
//	go build -tags libraw -ldflags "-X rawdevelop/core.Version=$(git describe --tags --always) \
//	    -X rawdevelop/core.GitCommit=$(git rev-parse --short HEAD) \
//	    -X rawdevelop/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionInfo is a one-line build description.
//
//	v1.2.0 (commit abc1234, built 2024-01-15T10:30:00Z)
func VersionInfo() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

// BuildLdflags assembles -X flags for the non-empty values.
func BuildLdflags(version, gitCommit, buildTime string) string {
	var flags []string
	add := func(name, value string) {
		if value != "" {
			flags = append(flags, "-X rawdevelop/core."+name+"="+value)
		}
	}
	add("Version", version)
	add("GitCommit", gitCommit)
	add("BuildTime", buildTime)
	return strings.Join(flags, " ")
}
