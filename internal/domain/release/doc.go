// Package release contains the core domain types of a publish run.
//
// BuildResult describes what a build produced for one platform/arch, Artifact
// is a single file selected for upload, and Manifest is the RELEASES.json
// document auto-update clients read. Key derivation (SafeKey, ObjectKey,
// ManifestKey), artifact collection and the manifest upsert live here too.
package release
