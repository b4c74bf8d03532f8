package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
)

// URLResolver derives public download URLs from object keys.
type URLResolver interface {
	ObjectURL(key string) string
}

// ManifestUpdater merges a published release marker into its platform/arch manifest.
type ManifestUpdater struct {
	// repo loads and stores manifests.
	repo manifest.Repository
	// urls regenerates the download URL of the marker on every update.
	urls URLResolver
	// notesTemplate renders the notes of the entry.
	notesTemplate string
	// retries bounds additional attempts after a concurrent modification.
	retries int
	// now is the clock used for pub_date.
	now func() time.Time
}

// NewManifestUpdater creates an updater. retries is the number of extra
// fetch-modify-write cycles allowed after a conflicting write.
func NewManifestUpdater(repo manifest.Repository, urls URLResolver, notesTemplate string, retries int) *ManifestUpdater {
	return &ManifestUpdater{
		repo:          repo,
		urls:          urls,
		notesTemplate: notesTemplate,
		retries:       max(retries, 0),
		now:           time.Now,
	}
}

// Update fetches the manifest for the marker's platform/arch, upserts the
// marker's version, makes it the current release and writes the document back.
// A missing, unreadable or corrupt manifest is replaced by a fresh one.
func (u *ManifestUpdater) Update(ctx context.Context, marker release.Artifact) (*release.Manifest, error) {
	key := u.repo.Key(marker.Platform, marker.Arch)
	ctx = logger.WithKV(ctx, "manifest", key)

	for attempt := 0; ; attempt++ {
		m, rev := u.load(ctx, marker)

		m.Upsert(release.NewUpdateTo(
			marker.Version,
			u.urls.ObjectURL(release.ObjectKey(marker)),
			release.RenderNotes(u.notesTemplate, marker.Version),
			u.now(),
		))

		err := u.repo.Save(ctx, marker.Platform, marker.Arch, m, rev)
		if err == nil {
			logger.InfoKV(ctx, "Manifest updated", "current_release", m.CurrentRelease, "releases", len(m.Releases))

			return m, nil
		}

		if !errors.Is(err, manifest.ErrConflict) || attempt >= u.retries {
			return nil, fmt.Errorf("update manifest %s: %w", key, err)
		}

		logger.WarnKV(ctx, "Manifest changed while updating, retrying", "attempt", attempt+1, "error", err)
	}
}

// load returns the stored manifest or a fresh one when it cannot be used.
func (u *ManifestUpdater) load(ctx context.Context, marker release.Artifact) (*release.Manifest, manifest.Revision) {
	m, rev, err := u.repo.Load(ctx, marker.Platform, marker.Arch)

	switch {
	case err == nil:
		return m, rev
	case errors.Is(err, manifest.ErrNotFound):
		logger.Info(ctx, "No manifest yet, starting a new one")
	case errors.Is(err, manifest.ErrCorrupt):
		logger.WarnKV(ctx, "Manifest is corrupt, replacing it", "error", err)
	default:
		logger.WarnKV(ctx, "Unable to fetch manifest, starting a new one", "error", err)
	}

	return release.NewManifest(), rev
}
