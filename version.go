// Package tracetm provides version information for the tracetm simulator.
package tracetm

// Version is the current version of tracetm. Release builds override it
// with -ldflags "-X github.com/felixgeelhaar/tracetm.Version=...".
var Version = "0.3.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
