// Package version exposes build metadata for the docrefine CLI. The values
// are injected with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/docrefine/internal/version.Version=0.3.0"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info is the build metadata in structured form.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version, marked when built from a dirty tree.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// UserAgent identifies docrefine to model backends that record callers.
func UserAgent() string {
	return "docrefine/" + String()
}

// Header returns the table header for Rows.
func (i Info) Header() []string {
	return []string{"Field", "Value"}
}

// Rows lists the metadata as field/value pairs.
func (i Info) Rows() [][]string {
	return [][]string{
		{"version", i.Version},
		{"commit", i.Commit},
		{"dirty", fmt.Sprint(i.Dirty)},
		{"built", i.BuildDate},
		{"go", i.GoVersion},
		{"platform", i.Platform},
	}
}

// Full returns a multi-line description of the build.
func Full() string {
	info := Get()
	var sb strings.Builder
	fmt.Fprintf(&sb, "docrefine %s\n", String())
	for _, row := range info.Rows()[1:] {
		if row[0] == "dirty" {
			continue
		}
		fmt.Fprintf(&sb, "  %-9s %s\n", row[0]+":", row[1])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
