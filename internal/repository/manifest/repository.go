package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/storage"
)

var (
	// ErrNotFound is returned when no manifest exists yet for a platform/arch.
	ErrNotFound = errors.New("manifest not found")
	// ErrCorrupt is returned when the stored document is not a valid manifest.
	ErrCorrupt = errors.New("manifest is corrupt")
	// ErrConflict is returned when the manifest changed since it was loaded.
	ErrConflict = errors.New("manifest was modified concurrently")
)

// Revision identifies the manifest version a write is based on.
type Revision struct {
	// ETag of the document when it was loaded; empty if it was absent or unknown.
	ETag string
	// Absent is set when the load established the document does not exist.
	Absent bool
}

// Conditional reports whether a write based on this revision can be made conditional.
func (r Revision) Conditional() bool {
	return r.ETag != "" || r.Absent
}

// Repository defines persistence operations for release manifests.
type Repository interface {
	// Load returns the manifest and its revision. On ErrCorrupt the revision is still
	// valid so the broken document can be replaced conditionally.
	Load(ctx context.Context, platform, arch string) (*release.Manifest, Revision, error)
	// Save replaces the whole manifest, conditionally on rev when possible.
	Save(ctx context.Context, platform, arch string, m *release.Manifest, rev Revision) error
	// Key returns the object key of the manifest.
	Key(platform, arch string) string
}

// StorageRepository keeps manifests in a storage.Client under basePath.
type StorageRepository struct {
	// client is the object store holding the documents.
	client storage.Client
	// basePath is the root of manifest keys.
	basePath string
}

// NewStorageRepository creates a repository rooted at basePath.
func NewStorageRepository(client storage.Client, basePath string) *StorageRepository {
	return &StorageRepository{
		client:   client,
		basePath: basePath,
	}
}

// Key returns {basePath}/{platform}/{arch}/RELEASES.json.
func (r *StorageRepository) Key(platform, arch string) string {
	return release.ManifestKey(r.basePath, platform, arch)
}

// Load fetches and decodes the manifest.
func (r *StorageRepository) Load(ctx context.Context, platform, arch string) (*release.Manifest, Revision, error) {
	key := r.Key(platform, arch)

	obj, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, Revision{Absent: true}, ErrNotFound
		}

		return nil, Revision{}, fmt.Errorf("fetch manifest: %w", err)
	}

	rev := Revision{ETag: obj.ETag}

	var m release.Manifest
	if err = json.Unmarshal(obj.Data, &m); err != nil {
		return nil, rev, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if m.Releases == nil {
		m.Releases = make([]release.ReleaseEntry, 0, 1)
	}

	return &m, rev, nil
}

// Save encodes and writes the manifest as a whole document.
func (r *StorageRepository) Save(ctx context.Context, platform, arch string, m *release.Manifest, rev Revision) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	opts := storage.PutOptions{ContentType: storage.ContentTypeJSON}

	if rev.Conditional() {
		opts.IfMatch = rev.ETag
		opts.IfNoneMatch = rev.ETag == ""
	}

	if _, err = r.client.Put(ctx, r.Key(platform, arch), data, opts); err != nil {
		if errors.Is(err, storage.ErrPreconditionFailed) {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}

		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
