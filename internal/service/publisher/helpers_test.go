package publisher

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/storage"
	"github.com/oshokin/release-publisher/internal/storage/memory"
)

// gatedStore wraps the memory store: uploads of gated files wait for their gate,
// and uploads of failing files return the configured error.
type gatedStore struct {
	*memory.Store

	gates map[string]chan struct{}
	fail  map[string]error
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Store: memory.New(memory.WithChunkSize(16)),
		gates: make(map[string]chan struct{}),
		fail:  make(map[string]error),
	}
}

func (s *gatedStore) Upload(ctx context.Context, key, localPath string, onProgress storage.ProgressFunc) error {
	name := path.Base(key)

	if err, ok := s.fail[name]; ok {
		return storage.NewError("upload", key, err)
	}

	if gate, ok := s.gates[name]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return storage.NewError("upload", key, ctx.Err())
		}
	}

	return s.Store.Upload(ctx, key, localPath, onProgress)
}

// writeArtifact creates a file of the given size in dir and returns its path.
func writeArtifact(t *testing.T, dir, name string, size int) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(filePath, bytes.Repeat([]byte{'x'}, size), 0o600))

	return filePath
}

// memoryConfig returns a validated configuration for the in-memory provider.
func memoryConfig(t *testing.T, basePath string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Storage: config.Storage{
			Provider:      config.ProviderMemory,
			PublicBaseURL: "https://cdn.example.com",
		},
		BasePath: basePath,
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}
