// Package meta holds the build information of selfmon.
package meta

// Version and Commit are set by the linker, like:
//
//	go build -ldflags "-X github.com/selfmon/selfmon/internal/meta.Version=1.0.0"
var (
	Version = "HEAD"
	Commit  = "UNKNOWN"
)
