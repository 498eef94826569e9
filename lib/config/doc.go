// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates seatreport configuration.
//
// Sources, lowest precedence first:
//
//   - [Default]
//   - an optional config file named by --config or SEATREPORT_CONFIG,
//     YAML or, for .json and .jsonc files, JSON with comments
//   - a dotenv file, merged underneath the process environment
//   - ENTERPRISE_SLUG, AUTH_TOKEN, and GITHUB_API_URL
//   - command-line flags, applied by the caller after [Load]
//
// Path fields expand ${HOME} and ${VAR:-default} patterns after
// loading. [Config.Validate] runs once, before any network I/O, and
// reports every problem as a [*ConfigError].
package config
