package release

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestManifest_UpsertAppendsNewVersion checks insertion and currentRelease.
func TestManifest_UpsertAppendsNewVersion(t *testing.T) {
	t.Parallel()

	m := NewManifest()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	m.Upsert(NewUpdateTo("1.0.0", "https://cdn/1.0.0/App.dmg", RenderNotes("", "1.0.0"), now))
	m.Upsert(NewUpdateTo("1.1.0", "https://cdn/1.1.0/App.dmg", RenderNotes("", "1.1.0"), now))

	require.Equal(t, "1.1.0", m.CurrentRelease)
	require.Len(t, m.Releases, 2)
	require.Equal(t, "1.0.0", m.Releases[0].Version)
	require.Equal(t, "version: 1.0.0", m.Releases[0].UpdateTo.Notes)
	require.Equal(t, m.Releases[1].Version, m.Releases[1].UpdateTo.Version)
}

// TestManifest_UpsertIsIdempotentPerVersion republishes a version and expects one refreshed entry.
func TestManifest_UpsertIsIdempotentPerVersion(t *testing.T) {
	t.Parallel()

	m := NewManifest()
	first := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	m.Upsert(NewUpdateTo("1.0.0", "https://old/App.dmg", "old", first))
	m.Upsert(NewUpdateTo("1.0.0", "https://new/App.dmg", "new", second))

	require.Len(t, m.Releases, 1)
	require.Equal(t, "https://new/App.dmg", m.Releases[0].UpdateTo.URL)
	require.Equal(t, second, m.Releases[0].UpdateTo.PubDate)
	require.Equal(t, "new", m.Releases[0].UpdateTo.Notes)
}

// TestManifest_UpsertCollapsesDuplicates ensures foreign duplicates never survive a write.
func TestManifest_UpsertCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		CurrentRelease: "0.9.0",
		Releases: []ReleaseEntry{
			{Version: "0.9.0"},
			{Version: "0.8.0"},
			{Version: "0.9.0"},
		},
	}

	m.Upsert(NewUpdateTo("1.0.0", "u", "n", time.Now()))

	versions := make(map[string]int)
	for _, entry := range m.Releases {
		versions[entry.Version]++
	}

	require.Equal(t, map[string]int{"0.9.0": 1, "0.8.0": 1, "1.0.0": 1}, versions)
	require.Equal(t, "1.0.0", m.CurrentRelease)
}

// TestManifest_JSONFieldNames pins the document shape read by update clients.
func TestManifest_JSONFieldNames(t *testing.T) {
	t.Parallel()

	m := NewManifest()
	m.Upsert(NewUpdateTo("3.1.4", "https://cdn/App.exe", "notes", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"currentRelease": "3.1.4",
		"releases": [{
			"version": "3.1.4",
			"updateTo": {
				"version": "3.1.4",
				"pub_date": "2026-01-02T03:04:05Z",
				"notes": "notes",
				"name": "3.1.4",
				"url": "https://cdn/App.exe"
			}
		}]
	}`, string(data))
}

// TestRenderNotes substitutes the version placeholder.
func TestRenderNotes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "version: 2.0.0", RenderNotes("", "2.0.0"))
	require.Equal(t, "Acme 2.0.0 (2.0.0)", RenderNotes("Acme {version} ({version})", "2.0.0"))
}
