package publisher

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/storage"
)

// Outcome is the result of a successful upload batch.
type Outcome struct {
	// Uploaded lists the artifacts in completion order.
	Uploaded []release.Artifact
	// Marker is the artifact chosen as the release of record, or nil when no
	// installer was uploaded.
	Marker *release.Artifact
}

// Coordinator uploads artifact batches concurrently.
type Coordinator struct {
	// client is the destination object store.
	client storage.Client
	// installers lists extensions eligible for the release marker.
	installers []string
	// status receives the aggregate progress line.
	status StatusFunc
}

// NewCoordinator creates a coordinator uploading to client.
func NewCoordinator(client storage.Client, installerExtensions []string, status StatusFunc) *Coordinator {
	return &Coordinator{
		client:     client,
		installers: installerExtensions,
		status:     status,
	}
}

// Upload transfers every artifact to its object key, all at once, and waits for
// all of them. The first failure is returned after the remaining transfers end;
// uploads that succeeded are left in place.
func (c *Coordinator) Upload(ctx context.Context, artifacts []release.Artifact) (*Outcome, error) {
	sizes, err := statArtifacts(artifacts)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, size := range sizes {
		total += uint64(size) //nolint:gosec // File sizes are never negative.
	}

	logger.InfoKV(ctx, "Uploading artifacts", "count", len(artifacts), "total_size", humanize.Bytes(total))

	tr := newTracker(artifacts, c.installers, c.status)
	tr.start()

	var group errgroup.Group

	for i, artifact := range artifacts {
		group.Go(func() error {
			key := release.ObjectKey(artifact)

			err := c.client.Upload(ctx, key, artifact.Path, func(fraction float64) {
				tr.progress(i, fraction)
			})
			if err != nil {
				logger.ErrorKV(ctx, "Artifact upload failed", "artifact", artifact.Name(), "key", key, "error", err)

				return fmt.Errorf("upload %s: %w", artifact.Name(), err)
			}

			tr.complete(i)

			logger.InfoKV(ctx, "Artifact uploaded",
				"artifact", artifact.Name(),
				"key", key,
				"size", humanize.Bytes(uint64(sizes[i])), //nolint:gosec // File sizes are never negative.
			)

			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return nil, err
	}

	return tr.outcome(), nil
}

// statArtifacts checks every artifact exists before any transfer starts.
func statArtifacts(artifacts []release.Artifact) ([]int64, error) {
	sizes := make([]int64, len(artifacts))

	for i, artifact := range artifacts {
		info, err := os.Stat(artifact.Path)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", artifact.Path, err)
		}

		if info.IsDir() {
			return nil, fmt.Errorf("artifact %s: %w", artifact.Path, errArtifactIsDirectory)
		}

		sizes[i] = info.Size()
	}

	return sizes, nil
}
