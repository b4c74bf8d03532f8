// Package config defines publisher settings and build-result inputs and provides
// helpers to load, validate and save them in YAML format.
//
// Config holds the object-store connection, the base path shared by artifact
// keys and manifests, and manifest options. BuildResults files describe what a
// build pipeline produced for each platform/arch.
package config
