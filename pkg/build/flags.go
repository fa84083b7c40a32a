// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded at link time:
//
//	go build -ldflags "-X specstream/pkg/build.buildName=specstream \
//	    -X specstream/pkg/build.buildVersion=0.1.0 ..."
//
// A development build without flags still runs with "unknown" values.
package build

import (
	"fmt"
	"strings"
)

const description = "Captures audio, computes its amplitude spectrum and streams it over UDP"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the flags as a one-line version banner.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "specstream",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
}

// Initialize copies every ldflags value that was set into the build flags.
// The error lists the flags that were not set; callers treat it as a warning.
func Initialize() error {
	var missing []string
	set := func(dst *string, val, name string) {
		if val == "" {
			missing = append(missing, name)
			return
		}
		*dst = val
	}
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if len(missing) > 0 {
		return fmt.Errorf("%s not set", strings.Join(missing, ", "))
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
