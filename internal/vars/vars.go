// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// License of the project
const License = "MIT"

var (
	// Name of the project
	Name = "masterstat"

	// Version of application (git tag) semver/tag, e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short git SHA
	Commit = "unknown"

	// Revision build, count of commits
	Revision = 0

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0).UTC()

	// URL to repository (https)
	URL = "https://github.com/woozymasta/masterstat"

	_revision  string
	_buildTime string
)

// BuildInfo describes the running binary, returned by the health endpoint.
type BuildInfo struct {
	// betteralign:ignore

	BuildTime   time.Time `json:"build_time" example:"1970-01-01T00:00:00Z"`
	Name        string    `json:"name" example:"masterstat"`
	Version     string    `json:"version" example:"v1.2.3"`
	Commit      string    `json:"commit" example:"da15c174cd2ada1ad247906536c101e8f6799def"`
	CommitShort string    `json:"commit_short,omitempty" example:"da15c17"`
	Revision    int       `json:"revision,omitempty" example:"42"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}
}

// Fprint writes build information to w, one "key: value" per line.
func Fprint(w io.Writer) {
	_, _ = fmt.Fprintf(w, "name:     %s\nurl:      %s\nversion:  %s\ncommit:   %s\nrevision: %d\nbuilt:    %s\nlicense:  %s\n",
		Name, URL, Version, Commit, Revision, BuildTime.Format(time.RFC3339), License)
}

// Info returns the build metadata.
func Info() BuildInfo {
	short := Commit
	if len(short) > 7 {
		short = short[:7]
	}

	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: short,
		Revision:    Revision,
		BuildTime:   BuildTime,
	}
}

// UserAgent returns "name/version", used for outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
