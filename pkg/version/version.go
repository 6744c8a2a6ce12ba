// Package version reports the batchengine build version and the config
// schema versions it understands.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Set at build time with -ldflags "-X github.com/rshade/batchengine/pkg/version.version=...".
//
//nolint:gochecknoglobals // Overwritten by the linker.
var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// SchemaVersion is the config schema version written by this build.
const SchemaVersion = "1.0.0"

// schemaConstraint lists the config schema versions this build can read.
const schemaConstraint = "^1.0.0"

// GetVersion returns the build version.
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build date.
func GetBuildDate() string {
	return buildDate
}

// String renders the full version line.
func String() string {
	return fmt.Sprintf("batchengine v%s (commit %s, built %s)", version, gitCommit, buildDate)
}

// IsCompatibleSchema reports whether a config file written with schema
// version v can be read. An empty v is treated as the current schema.
func IsCompatibleSchema(v string) (bool, error) {
	if v == "" {
		return true, nil
	}

	sv, err := semver.NewVersion(v)
	if err != nil {
		return false, fmt.Errorf("invalid schema version %q: %w", v, err)
	}

	constraint, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return false, fmt.Errorf("parsing schema constraint: %w", err)
	}
	return constraint.Check(sv), nil
}
