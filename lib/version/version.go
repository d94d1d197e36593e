// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/reef/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Empty values are filled from the build info the go command embeds.
var (
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
	Version   = "0.1.0-dev"
)

// shortCommit is the length GitCommit is cut to when read from build
// info, matching git rev-parse --short.
const shortCommit = 7

// Build describes the running binary.
type Build struct {
	Version string
	Commit  string
	Dirty   bool
	Time    string
}

// Current merges the -ldflags values with the VCS stamps from
// debug.ReadBuildInfo. Explicit -ldflags values win.
func Current() Build {
	build := Build{
		Version: Version,
		Commit:  GitCommit,
		Dirty:   GitDirty == "true",
		Time:    BuildTime,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return build.withDefaults()
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if build.Commit == "" {
				build.Commit = setting.Value[:min(len(setting.Value), shortCommit)]
			}
		case "vcs.modified":
			if GitDirty == "" {
				build.Dirty = setting.Value == "true"
			}
		case "vcs.time":
			if build.Time == "" {
				build.Time = setting.Value
			}
		}
	}
	return build.withDefaults()
}

func (b Build) withDefaults() Build {
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Time == "" {
		b.Time = "unknown"
	}
	return b
}

// String formats "version (commit[-dirty], time)".
func (b Build) String() string {
	dirty := ""
	if b.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", b.Version, b.Commit, dirty, b.Time)
}

// Info is Current().String().
func Info() string { return Current().String() }

// Full adds the Go version and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is the product token the clients send to reef-core.
func UserAgent(binary string) string {
	return binary + "/" + Version
}

// Print writes "binary Info()" and a newline to w.
func Print(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s\n", binary, Info())
}
