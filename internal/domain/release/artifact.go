package release

import (
	"path/filepath"
	"slices"
	"strings"
)

// BuildResult is the output of one build for a single platform/arch pair.
type BuildResult struct {
	// Package is the identifier of the built package, e.g. "@acme/desktop".
	Package string `yaml:"package"`
	// Version is the released version shared by every produced file.
	Version string `yaml:"version"`
	// Platform is the target operating system, e.g. "darwin" or "win32".
	Platform string `yaml:"platform"`
	// Arch is the target CPU architecture, e.g. "x64" or "arm64".
	Arch string `yaml:"arch"`
	// Artifacts lists the local paths of produced files.
	Artifacts []string `yaml:"artifacts"`
	// PackageJSON optionally points to a package.json supplying Package and Version.
	PackageJSON string `yaml:"package_json,omitempty"`
}

// Artifact is one local file scheduled for publication.
type Artifact struct {
	// Path is the local file location.
	Path string
	// Platform is inherited from the owning build result.
	Platform string
	// Arch is inherited from the owning build result.
	Arch string
	// Version is inherited from the owning build result.
	Version string
	// KeyPrefix is the namespace segment of the object key.
	KeyPrefix string
}

// Name returns the base filename of the artifact.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Ext returns the lower-cased file extension including the leading dot.
func (a Artifact) Ext() string {
	return strings.ToLower(filepath.Ext(a.Path))
}

// IsInstaller reports whether the artifact extension is one of the given installer extensions.
// Extensions are compared case-insensitively and must include the leading dot.
func (a Artifact) IsInstaller(extensions []string) bool {
	ext := a.Ext()
	if ext == "" {
		return false
	}

	return slices.ContainsFunc(extensions, func(candidate string) bool {
		return strings.EqualFold(candidate, ext)
	})
}
