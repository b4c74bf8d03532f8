package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/storage"
	"github.com/oshokin/release-publisher/internal/storage/memory"
)

// fakeRepository is an in-memory manifest.Repository with injectable failures.
type fakeRepository struct {
	mu sync.Mutex

	stored    *release.Manifest
	loadErr   error
	conflicts int
	loads     int
	saves     []manifest.Revision
}

func (r *fakeRepository) Load(_ context.Context, _, _ string) (*release.Manifest, manifest.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loads++

	if r.loadErr != nil {
		return nil, manifest.Revision{ETag: "broken"}, r.loadErr
	}

	if r.stored == nil {
		return nil, manifest.Revision{Absent: true}, manifest.ErrNotFound
	}

	clone := *r.stored
	clone.Releases = append([]release.ReleaseEntry(nil), r.stored.Releases...)

	return &clone, manifest.Revision{ETag: "v1"}, nil
}

func (r *fakeRepository) Save(_ context.Context, _, _ string, m *release.Manifest, rev manifest.Revision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves = append(r.saves, rev)

	if r.conflicts > 0 {
		r.conflicts--

		return manifest.ErrConflict
	}

	r.stored = m
	r.loadErr = nil

	return nil
}

func (r *fakeRepository) Key(platform, arch string) string {
	return release.ManifestKey("", platform, arch)
}

var fixedNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60))

func newTestUpdater(repo manifest.Repository, retries int) *ManifestUpdater {
	u := NewManifestUpdater(repo, memory.New(memory.WithBaseURL("https://cdn.example.com")), "", retries)
	u.now = func() time.Time { return fixedNow }

	return u
}

func testMarker(version string) release.Artifact {
	return release.Artifact{
		Path:      "/out/App-" + version + ".dmg",
		Platform:  "darwin",
		Arch:      "arm64",
		Version:   version,
		KeyPrefix: "desktop",
	}
}

// TestManifestUpdater_CreatesManifest starts a fresh manifest when none exists.
func TestManifestUpdater_CreatesManifest(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{}

	m, err := newTestUpdater(repo, 3).Update(context.Background(), testMarker("1.0.0"))
	require.NoError(t, err)
	require.Equal(t, "1.0.0", m.CurrentRelease)
	require.Equal(t, []release.ReleaseEntry{{
		Version: "1.0.0",
		UpdateTo: release.UpdateTo{
			Version: "1.0.0",
			PubDate: fixedNow.UTC(),
			Notes:   "version: 1.0.0",
			Name:    "1.0.0",
			URL:     "https://cdn.example.com/desktop/darwin/arm64/1.0.0/App-1.0.0.dmg",
		},
	}}, m.Releases)
	require.Equal(t, []manifest.Revision{{Absent: true}}, repo.saves)
}

// TestManifestUpdater_KeepsOtherReleases appends a new version and preserves older ones.
func TestManifestUpdater_KeepsOtherReleases(t *testing.T) {
	t.Parallel()

	existing := release.NewManifest()
	existing.Upsert(release.NewUpdateTo("0.9.0", "https://old/App.dmg", "old", fixedNow.Add(-time.Hour)))

	repo := &fakeRepository{stored: existing}

	m, err := newTestUpdater(repo, 3).Update(context.Background(), testMarker("1.0.0"))
	require.NoError(t, err)
	require.Equal(t, "1.0.0", m.CurrentRelease)
	require.Len(t, m.Releases, 2)
	require.Equal(t, "0.9.0", m.Releases[0].Version)
	require.Equal(t, "https://old/App.dmg", m.Releases[0].UpdateTo.URL)
	require.Equal(t, []manifest.Revision{{ETag: "v1"}}, repo.saves)
}

// TestManifestUpdater_Idempotent republishing a version leaves a single entry.
func TestManifestUpdater_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepository{}
	updater := newTestUpdater(repo, 3)

	_, err := updater.Update(ctx, testMarker("1.0.0"))
	require.NoError(t, err)

	updater.now = func() time.Time { return fixedNow.Add(time.Minute) }

	m, err := updater.Update(ctx, testMarker("1.0.0"))
	require.NoError(t, err)
	require.Len(t, m.Releases, 1)
	require.Equal(t, fixedNow.Add(time.Minute).UTC(), m.Releases[0].UpdateTo.PubDate)
}

// TestManifestUpdater_ReplacesCorrupt rewrites a corrupt document conditionally on its ETag.
func TestManifestUpdater_ReplacesCorrupt(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{loadErr: manifest.ErrCorrupt}

	m, err := newTestUpdater(repo, 3).Update(context.Background(), testMarker("1.0.0"))
	require.NoError(t, err)
	require.Len(t, m.Releases, 1)
	require.Equal(t, []manifest.Revision{{ETag: "broken"}}, repo.saves)
}

// TestManifestUpdater_FetchFailureStartsFresh treats transport failures like a missing manifest.
func TestManifestUpdater_FetchFailureStartsFresh(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{loadErr: errors.New("access denied")}

	m, err := newTestUpdater(repo, 3).Update(context.Background(), testMarker("3.1.4"))
	require.NoError(t, err)
	require.Equal(t, "3.1.4", m.CurrentRelease)
}

// TestManifestUpdater_RetriesConflicts reloads and reapplies the upsert after a conflict.
func TestManifestUpdater_RetriesConflicts(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{conflicts: 2}

	m, err := newTestUpdater(repo, 3).Update(context.Background(), testMarker("1.0.0"))
	require.NoError(t, err)
	require.Equal(t, "1.0.0", m.CurrentRelease)
	require.Equal(t, 3, repo.loads)
	require.Len(t, repo.saves, 3)
	require.Same(t, m, repo.stored)
}

// TestManifestUpdater_GivesUpAfterRetries returns ErrConflict once retries are exhausted.
func TestManifestUpdater_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{conflicts: 10}

	_, err := newTestUpdater(repo, 2).Update(context.Background(), testMarker("1.0.0"))
	require.ErrorIs(t, err, manifest.ErrConflict)
	require.Len(t, repo.saves, 3)
	require.Nil(t, repo.stored)
}

// TestManifestUpdater_KeepsHistoryWithForeignTimestamps upserts into a manifest whose
// older entry carries an ISO-8601 pub_date without a colon in the offset.
func TestManifestUpdater_KeepsHistoryWithForeignTimestamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New(memory.WithBaseURL("https://cdn.example.com"))
	repo := manifest.NewStorageRepository(store, "desktop")

	const existing = `{"currentRelease":"1.0.0","releases":[{"version":"1.0.0","updateTo":{
		"version":"1.0.0","pub_date":"2024-03-01T12:00:00+0000","notes":"version: 1.0.0",
		"name":"1.0.0","url":"https://cdn.example.com/desktop/darwin/arm64/1.0.0/App-1.0.0.dmg"}}]}`

	_, err := store.Put(ctx, repo.Key("darwin", "arm64"), []byte(existing), storage.PutOptions{})
	require.NoError(t, err)

	updater := NewManifestUpdater(repo, store, "", 3)
	updater.now = func() time.Time { return fixedNow }

	_, err = updater.Update(ctx, testMarker("1.1.0"))
	require.NoError(t, err)

	stored, _, err := repo.Load(ctx, "darwin", "arm64")
	require.NoError(t, err)
	require.Equal(t, "1.1.0", stored.CurrentRelease)
	require.Len(t, stored.Releases, 2)
	require.Equal(t, "1.0.0", stored.Releases[0].Version)
	require.True(t, time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC).Equal(stored.Releases[0].UpdateTo.PubDate))
	require.Equal(t, "1.1.0", stored.Releases[1].Version)

	object, err := store.Get(ctx, repo.Key("darwin", "arm64"))
	require.NoError(t, err)
	require.Contains(t, string(object.Data), `"pub_date": "2024-03-01T12:00:00+0000"`)
}
