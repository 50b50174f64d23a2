// Package version exposes build version information for the CLIs.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit can be set at build time:
//
//	go build -ldflags="-X github.com/muurk/ledble/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/ledble/internal/version.Commit=abc123"
//
// When unset they are derived from the VCS stamp Go embeds in binaries
// built from a git checkout, falling back to a dated dev string.
var (
	Version = ""
	Commit  = ""
)

func init() {
	rev, modified, commitTime := vcsStamp()

	if Commit == "" && rev != "" {
		Commit = rev
		if len(Commit) > 7 {
			Commit = Commit[:7]
		}
		if modified {
			Commit += "-dirty"
		}
	}
	if Commit == "" {
		Commit = "unknown"
	}

	// Build info carries no git tags, so a dev version is dated from the
	// commit when possible.
	if Version == "" && !commitTime.IsZero() {
		Version = "dev-" + commitTime.Format("20060102")
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
}

func vcsStamp() (rev string, modified bool, commitTime time.Time) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false, time.Time{}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				commitTime = t
			}
		}
	}
	return rev, modified, commitTime
}

// Full returns the full version string including commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
