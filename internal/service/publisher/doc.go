// Package publisher uploads build artifacts and reconciles release manifests.
//
// Run is the entry point used by the CLI. It collects artifacts from build
// results, uploads them all concurrently through the Coordinator while
// rendering an aggregate status line, and, when an installer was uploaded,
// merges it into the platform/arch RELEASES.json through the ManifestUpdater.
package publisher
