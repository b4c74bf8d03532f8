package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-publisher/internal/domain/release"
)

// errNoBuildResults is returned when a results file lists nothing.
var errNoBuildResults = errors.New("build results file is empty")

// packageJSON is the subset of package.json used to fill build results.
type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// LoadBuildResults reads a YAML list of build results.
//
// Relative artifact and package.json paths are resolved against the directory of
// the results file. Entries referencing a package.json take their missing package
// identifier and version from it.
func LoadBuildResults(path string) ([]release.BuildResult, error) {
	path = filepath.Clean(path)

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build results: %w", err)
	}

	var results []release.BuildResult
	if err = yaml.Unmarshal(contents, &results); err != nil {
		return nil, fmt.Errorf("unmarshal build results: %w", err)
	}

	if len(results) == 0 {
		return nil, errNoBuildResults
	}

	dir := filepath.Dir(path)

	for i := range results {
		result := &results[i]

		for j, artifact := range result.Artifacts {
			result.Artifacts[j] = resolvePath(dir, artifact)
		}

		if result.PackageJSON == "" {
			continue
		}

		result.PackageJSON = resolvePath(dir, result.PackageJSON)
		if err = FillFromPackageJSON(result); err != nil {
			return nil, fmt.Errorf("build result #%d: %w", i+1, err)
		}
	}

	return results, nil
}

// FillFromPackageJSON sets Package and Version from result.PackageJSON when they are empty.
func FillFromPackageJSON(result *release.BuildResult) error {
	if result.PackageJSON == "" || (result.Package != "" && result.Version != "") {
		return nil
	}

	contents, err := os.ReadFile(filepath.Clean(result.PackageJSON))
	if err != nil {
		return fmt.Errorf("read package.json: %w", err)
	}

	var pkg packageJSON
	if err = json.Unmarshal(contents, &pkg); err != nil {
		return fmt.Errorf("decode package.json: %w", err)
	}

	if result.Package == "" {
		result.Package = pkg.Name
	}

	if result.Version == "" {
		result.Version = pkg.Version
	}

	return nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}
