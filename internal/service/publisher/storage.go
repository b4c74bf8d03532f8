package publisher

import (
	"context"
	"fmt"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/storage"
	"github.com/oshokin/release-publisher/internal/storage/memory"
	"github.com/oshokin/release-publisher/internal/storage/minio"
	"github.com/oshokin/release-publisher/internal/storage/s3"
	"github.com/oshokin/release-publisher/internal/version"
)

// openStorage builds the storage client selected by the configuration.
// Dry runs always use the in-memory store.
//
//nolint:ireturn // Callers only need the storage.Client capability set.
func openStorage(ctx context.Context, settings config.Storage, dryRun bool) (storage.Client, error) {
	if dryRun {
		return memory.New(memory.WithBaseURL(settings.PublicBaseURL), memory.WithDiscardUploads()), nil
	}

	if settings.Provider == config.ProviderMemory {
		return memory.New(memory.WithBaseURL(settings.PublicBaseURL)), nil
	}

	switch settings.Provider {
	case config.ProviderMinIO:
		store, err := minio.New(minio.Options{
			Endpoint:        settings.Endpoint,
			Region:          settings.Region,
			Bucket:          settings.Bucket,
			AccessKeyID:     settings.AccessKeyID,
			SecretAccessKey: settings.SecretAccessKey,
			SessionToken:    settings.SessionToken,
			UseSSL:          settings.UseSSL,
			PublicBaseURL:   settings.PublicBaseURL,
			PartSize:        uint64(max(settings.PartSize, 0)), //nolint:gosec // Clamped to non-negative.
			AppName:         version.Name,
			AppVersion:      version.Short(),
		})
		if err != nil {
			return nil, fmt.Errorf("open minio storage: %w", err)
		}

		return store, nil
	case config.ProviderS3:
		store, err := s3.New(ctx, s3.Options{
			Region:          settings.Region,
			Bucket:          settings.Bucket,
			Endpoint:        settings.Endpoint,
			AccessKeyID:     settings.AccessKeyID,
			SecretAccessKey: settings.SecretAccessKey,
			SessionToken:    settings.SessionToken,
			ForcePathStyle:  settings.ForcePathStyle,
			PublicBaseURL:   settings.PublicBaseURL,
			PartSize:        settings.PartSize,
			AppID:           version.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedProvider, settings.Provider)
	}
}
