package publisher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/storage/memory"
)

// TestOpenStorage_DryRunDiscardsArtifacts keeps dry-run uploads out of memory.
func TestOpenStorage_DryRunDiscardsArtifacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	client, err := openStorage(ctx, config.Storage{
		Provider:      config.ProviderS3,
		Bucket:        "releases",
		PublicBaseURL: "https://cdn.example.com",
	}, true)
	require.NoError(t, err)

	store, ok := client.(*memory.Store)
	require.True(t, ok)

	path := filepath.Join(t.TempDir(), "App.dmg")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o600))
	require.NoError(t, store.Upload(ctx, "darwin/x64/App.dmg", path, nil))

	obj, err := store.Get(ctx, "darwin/x64/App.dmg")
	require.NoError(t, err)
	require.Empty(t, obj.Data)
	require.Equal(t, int64(4096), store.Size("darwin/x64/App.dmg"))
	require.Equal(t, "https://cdn.example.com/darwin/x64/App.dmg", store.ObjectURL("darwin/x64/App.dmg"))
}

// TestOpenStorage_MemoryProviderKeepsArtifacts stores full contents outside dry runs.
func TestOpenStorage_MemoryProviderKeepsArtifacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	client, err := openStorage(ctx, config.Storage{Provider: config.ProviderMemory}, false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "App.dmg")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))
	require.NoError(t, client.Upload(ctx, "App.dmg", path, nil))

	obj, err := client.Get(ctx, "App.dmg")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), obj.Data)
}
