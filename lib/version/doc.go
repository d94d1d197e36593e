// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version identifies the reef binaries.
//
// Release builds inject [Version], [GitCommit], [GitDirty] and
// [BuildTime] with -ldflags -X. Anything left empty is taken from the
// VCS stamps the go command records in the binary, so "go install"
// builds still report their commit. [Current] returns the merged
// result; [Info] and [Print] format it for --version; [UserAgent] is
// sent on every HTTP request.
package version
