// Package version exposes build metadata for release-publisher.
//
// Version, Commit and BuildTime are injected through -ldflags at build time.
// Commit falls back to the VCS revision stamped by the Go toolchain. Full is
// printed by the `version` subcommand.
package version
