// Package version holds build identification, set via ldflags.
package version

var (
	Version  = "0.0.0"
	Branch   = ""
	Revision = ""
)
