package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/storage"
)

var (
	errConfigRequired      = errors.New("configuration is not set")
	errNothingToPublish    = errors.New("build results contain no artifacts")
	errUnsupportedProvider = errors.New("unsupported storage provider")
	errArtifactIsDirectory = errors.New("artifact is a directory")
)

// Options contains inputs for the publish entry point.
type Options struct {
	// Config holds validated publisher settings.
	Config *config.Config
	// Results are the build results to publish.
	Results []release.BuildResult
	// DryRun uploads into an in-memory store instead of the configured one.
	DryRun bool
	// Status receives the aggregate upload status line.
	Status StatusFunc
	// GuardDir holds the run marker; defaults to the OS temp directory.
	GuardDir string
	// Storage overrides the configured storage client.
	Storage storage.Client
}

// Report summarizes a finished publish run.
type Report struct {
	// Uploaded lists artifacts in completion order.
	Uploaded []release.Artifact
	// Marker is the release marker, nil when no installer was uploaded.
	Marker *release.Artifact
	// Manifest is the written manifest, nil when no update happened.
	Manifest *release.Manifest
	// ManifestKey is the object key of the written manifest.
	ManifestKey string
}

// runner holds the collaborators of a single publish run.
// It is unexported; callers use Run.
type runner struct {
	cfg         *config.Config
	coordinator *Coordinator
	updater     *ManifestUpdater
	repo        manifest.Repository
}

// Run publishes the build results described by opts.
//
// Configuration problems and malformed build results are reported before any
// network activity. Upload failures abort the run without touching the
// manifest; a manifest write failure is returned after all uploads finished.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "publisher")

	if opts == nil || opts.Config == nil {
		return nil, errConfigRequired
	}

	cfg := opts.Config

	artifacts, err := release.Collect(opts.Results, cfg.BasePath)
	if err != nil {
		return nil, err
	}

	if len(artifacts) == 0 {
		return nil, errNothingToPublish
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if !opts.DryRun && cfg.Storage.Provider != config.ProviderMemory {
		guardDir := opts.GuardDir
		if guardDir == "" {
			guardDir = os.TempDir()
		}

		guard, guardErr := acquireGuard(ctx, guardDir, cfg.Storage.Provider+"/"+cfg.Storage.Bucket+"/"+cfg.BasePath)
		if guardErr != nil {
			return nil, guardErr
		}

		defer guard.release(ctx)
	}

	client := opts.Storage
	if client == nil {
		if client, err = openStorage(ctx, cfg.Storage, opts.DryRun); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		logger.Warn(ctx, "Dry run: artifacts are uploaded to an in-memory store")
	}

	r := newRunner(cfg, client, opts.Status)

	report, err := r.Run(ctx, artifacts)
	if err != nil {
		return nil, fmt.Errorf("publish failed: %w", err)
	}

	return report, nil
}

func newRunner(cfg *config.Config, client storage.Client, status StatusFunc) *runner {
	repo := manifest.NewStorageRepository(client, cfg.BasePath)

	return &runner{
		cfg:         cfg,
		coordinator: NewCoordinator(client, cfg.InstallerExtensions, status),
		updater:     NewManifestUpdater(repo, client, cfg.NotesTemplate, cfg.ManifestRetries),
		repo:        repo,
	}
}

// Run uploads the artifacts and updates the manifest when a marker was selected.
func (r *runner) Run(ctx context.Context, artifacts []release.Artifact) (*Report, error) {
	outcome, err := r.coordinator.Upload(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Uploaded: outcome.Uploaded,
		Marker:   outcome.Marker,
	}

	if outcome.Marker == nil {
		logger.Info(ctx, "No installer among uploaded artifacts, manifest left unchanged")

		return report, nil
	}

	marker := *outcome.Marker
	logger.InfoKV(ctx, "Selected release marker",
		"artifact", marker.Name(),
		"version", marker.Version,
		"platform", marker.Platform,
		"arch", marker.Arch,
	)

	report.ManifestKey = r.repo.Key(marker.Platform, marker.Arch)

	if report.Manifest, err = r.updater.Update(ctx, marker); err != nil {
		return nil, err
	}

	return report, nil
}

// ShowManifest fetches and decodes the manifest of a platform/arch pair.
func ShowManifest(ctx context.Context, cfg *config.Config, platform, arch string) (*release.Manifest, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	ctx = logger.WithName(ctx, "manifest")

	client, err := openStorage(ctx, cfg.Storage, false)
	if err != nil {
		return nil, err
	}

	repo := manifest.NewStorageRepository(client, cfg.BasePath)

	m, _, err := repo.Load(ctx, platform, arch)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", repo.Key(platform, arch), err)
	}

	return m, nil
}
