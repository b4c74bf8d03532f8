package release

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultNotesTemplate renders release notes when none is configured.
const DefaultNotesTemplate = "version: {version}"

// Manifest is the release index auto-update clients read for one platform/arch pair.
//
// Top-level fields other writers added are kept and written back unchanged.
type Manifest struct {
	// CurrentRelease is the version clients should update to.
	CurrentRelease string `json:"currentRelease"`
	// Releases lists every known published version, at most one entry per version.
	Releases []ReleaseEntry `json:"releases"`

	// extra holds unknown top-level fields of a decoded document.
	extra map[string]json.RawMessage
}

// ReleaseEntry is the client-facing metadata of one version.
//
// An entry decoded from a stored document keeps its original JSON and is
// written back byte for byte until Upsert replaces it.
type ReleaseEntry struct {
	Version  string   `json:"version"`
	UpdateTo UpdateTo `json:"updateTo"`

	// raw is the stored JSON of the entry; nil for entries built in this run.
	raw json.RawMessage
}

// UpdateTo tells a client where and what to update to.
type UpdateTo struct {
	Version string    `json:"version"`
	PubDate time.Time `json:"pub_date"`
	Notes   string    `json:"notes"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
}

// NewManifest returns an empty manifest with no current release.
func NewManifest() *Manifest {
	return &Manifest{
		Releases: make([]ReleaseEntry, 0, 1),
	}
}

// RenderNotes substitutes {version} in template, falling back to DefaultNotesTemplate.
func RenderNotes(template, version string) string {
	if template == "" {
		template = DefaultNotesTemplate
	}

	return strings.ReplaceAll(template, "{version}", version)
}

// NewUpdateTo builds a fresh UpdateTo record for a version published at pubDate.
func NewUpdateTo(version, url, notes string, pubDate time.Time) UpdateTo {
	return UpdateTo{
		Version: version,
		PubDate: pubDate.UTC(),
		Notes:   notes,
		Name:    version,
		URL:     url,
	}
}

// Find returns the index of the entry for version or -1.
func (m *Manifest) Find(version string) int {
	for i := range m.Releases {
		if m.Releases[i].Version == version {
			return i
		}
	}

	return -1
}

// Upsert makes update the current release and stores it under its version.
//
// An existing entry has its UpdateTo replaced entirely; otherwise a new entry is
// appended. Duplicate entries left by other writers are collapsed to their first
// occurrence so the manifest never holds two entries for one version.
func (m *Manifest) Upsert(update UpdateTo) {
	m.dedup()
	m.CurrentRelease = update.Version

	if i := m.Find(update.Version); i >= 0 {
		m.Releases[i].UpdateTo = update
		m.Releases[i].raw = nil

		return
	}

	m.Releases = append(m.Releases, ReleaseEntry{
		Version:  update.Version,
		UpdateTo: update,
	})
}

func (m *Manifest) dedup() {
	if m.Releases == nil {
		m.Releases = make([]ReleaseEntry, 0, 1)

		return
	}

	seen := make(map[string]struct{}, len(m.Releases))
	kept := m.Releases[:0]

	for _, entry := range m.Releases {
		// Entries without a readable version are opaque and always kept.
		if entry.Version == "" {
			kept = append(kept, entry)

			continue
		}

		if _, ok := seen[entry.Version]; ok {
			continue
		}

		seen[entry.Version] = struct{}{}
		kept = append(kept, entry)
	}

	m.Releases = kept
}
