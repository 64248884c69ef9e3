// Package version exposes build metadata for node-bin-gen.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// Full renders them for the version subcommand, UserAgent for HTTP requests.
package version
