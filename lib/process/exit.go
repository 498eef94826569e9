// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Fatal writes err to stderr and exits with code 1. Use it in main()
// for errors from run().
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(1)
}

// Report writes err to writer as "error: ..." lines. Joined errors,
// such as the result of config validation, get one line each.
func Report(writer io.Writer, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(writer, "error: %s\n", line)
	}
}
