// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads client configuration for the reef tools.
//
// Configuration comes from at most one file, named by the --config flag
// (via [LoadFile]) or the REEF_CONFIG environment variable (via
// [Load]). Without either, [Default] applies. Files ending in .json or
// .jsonc are read as JSON with comments; anything else is YAML.
//
// Two environment variables override the file: REEF_URL replaces the
// service base URL and REEF_WS_URL the stream URL. When only REEF_URL
// is set, the stream URL is derived from it.
//
// Path fields expand ${HOME}, ${XDG_CACHE_HOME} and ${VAR:-default}
// patterns after loading.
//
// Key exports:
//
//   - [Config] -- Service, Refresh, Buffer, Cache and Log sections
//   - [Default] -- the configuration used when no file is given
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [StreamURLFor] -- derives the stream URL from a base URL
//
// This package depends on no other reef packages.
package config
