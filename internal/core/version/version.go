package version

// Version is set at build time with
// -ldflags "-X github.com/guiyumin/unmark/internal/core/version.Version=x.y.z"
var Version = "0.1.0-dev"
