package release

import (
	"strings"
)

// ManifestFilename is the name of the manifest document stored per platform/arch.
const ManifestFilename = "RELEASES.json"

// keySafeReplacer maps characters with structural meaning in object keys to "_".
// "@" scopes package owners and "/" separates key segments.
//
//nolint:gochecknoglobals // Immutable replacer shared by SafeKey.
var keySafeReplacer = strings.NewReplacer("@", "_", "/", "_")

// SafeKey derives a storage-safe key segment from a package identifier.
func SafeKey(identifier string) string {
	return keySafeReplacer.Replace(identifier)
}

// ObjectKey composes the canonical storage key of an artifact:
// {keyPrefix}/{platform}/{arch}/{version}/{filename}.
func ObjectKey(a Artifact) string {
	return joinKey(a.KeyPrefix, a.Platform, a.Arch, a.Version, a.Name())
}

// ManifestKey returns the location of the manifest for a platform/arch pair:
// {basePath}/{platform}/{arch}/RELEASES.json.
func ManifestKey(basePath, platform, arch string) string {
	return joinKey(basePath, platform, arch, ManifestFilename)
}

// joinKey joins non-empty segments with "/", trimming stray separators so keys never
// start with "/" or contain "//".
func joinKey(segments ...string) string {
	parts := make([]string, 0, len(segments))

	for _, segment := range segments {
		segment = strings.Trim(segment, "/")
		if segment == "" {
			continue
		}

		parts = append(parts, segment)
	}

	return strings.Join(parts, "/")
}
