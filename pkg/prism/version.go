package prism

// Build metadata, set with -ldflags "-X".
var (
	Version = "v0.0.0-in-progress"
	Commit  = "unknown"
)

// ReleaseVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func ReleaseVersion() string {
	return Version
}

// BuildCommit returns the VCS commit injected at build time, or "unknown".
func BuildCommit() string {
	return Commit
}
