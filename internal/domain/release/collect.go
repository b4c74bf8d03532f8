package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidBuildResult marks malformed build results; nothing is uploaded when it is returned.
var ErrInvalidBuildResult = errors.New("invalid build result")

// Collect flattens build results into the ordered list of artifacts to upload.
//
// Each produced file becomes one Artifact inheriting version, platform and arch of its
// build result. The key prefix is keyPrefixOverride when set, or SafeKey(Package).
// Build results without artifacts are skipped.
func Collect(results []BuildResult, keyPrefixOverride string) ([]Artifact, error) {
	override := strings.Trim(keyPrefixOverride, "/")
	artifacts := make([]Artifact, 0, len(results))

	for i, result := range results {
		if len(result.Artifacts) == 0 {
			continue
		}

		if err := validateBuildResult(result, override != ""); err != nil {
			return nil, fmt.Errorf("build result #%d (%s/%s): %w", i+1, result.Platform, result.Arch, err)
		}

		prefix := override
		if prefix == "" {
			prefix = SafeKey(result.Package)
		}

		for _, path := range result.Artifacts {
			if strings.TrimSpace(path) == "" {
				return nil, fmt.Errorf("build result #%d: %w: empty artifact path", i+1, ErrInvalidBuildResult)
			}

			artifacts = append(artifacts, Artifact{
				Path:      path,
				Platform:  result.Platform,
				Arch:      result.Arch,
				Version:   result.Version,
				KeyPrefix: prefix,
			})
		}
	}

	return artifacts, nil
}

func validateBuildResult(result BuildResult, hasOverride bool) error {
	switch {
	case result.Package == "" && !hasOverride:
		return fmt.Errorf("%w: package identifier is empty", ErrInvalidBuildResult)
	case result.Version == "":
		return fmt.Errorf("%w: version is empty", ErrInvalidBuildResult)
	case result.Platform == "":
		return fmt.Errorf("%w: platform is empty", ErrInvalidBuildResult)
	case result.Arch == "":
		return fmt.Errorf("%w: arch is empty", ErrInvalidBuildResult)
	}

	if _, err := semver.NewVersion(result.Version); err != nil {
		return fmt.Errorf("%w: version %q: %w", ErrInvalidBuildResult, result.Version, err)
	}

	return nil
}
