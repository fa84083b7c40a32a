// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"specstream/cmd"
	applog "specstream/internal/log"
	"specstream/pkg/build"
)

// main is the entry point. Startup loads the configuration and builds every
// component; the tasks then run until SIGINT or SIGTERM, after which sockets
// are released and the process exits.
func main() {
	// A development build runs without ldflags metadata.
	if err := build.Initialize(); err != nil {
		applog.Warnf("Build: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
