// Package version carries build metadata injected with -ldflags.
package version

// Set with -ldflags "-X github.com/noah-isme/civic-portal-api/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
)
