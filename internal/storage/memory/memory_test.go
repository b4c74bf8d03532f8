package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/storage"
)

// TestStore_UploadReportsProgress uploads a file in small chunks and checks the callbacks.
func TestStore_UploadReportsProgress(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "App.zip")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0o600))

	store := New(WithChunkSize(100))

	var fractions []float64

	err := store.Upload(context.Background(), "app/App.zip", path, func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)
	require.Len(t, fractions, 10)
	require.InDelta(t, 1.0, fractions[9], 1e-9)

	obj, err := store.Get(context.Background(), "app/App.zip")
	require.NoError(t, err)
	require.Len(t, obj.Data, 1000)
	require.NotEmpty(t, obj.ETag)
}

// TestStore_UploadMissingFile returns a wrapped storage error.
func TestStore_UploadMissingFile(t *testing.T) {
	t.Parallel()

	err := New().Upload(context.Background(), "k", filepath.Join(t.TempDir(), "nope"), nil)

	var storageErr *storage.Error
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "upload", storageErr.Op)
}

// TestStore_GetMissing maps absence to storage.ErrNotFound.
func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	_, err := New().Get(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestStore_PutPreconditions exercises create-only and compare-and-swap writes.
func TestStore_PutPreconditions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()

	_, err := store.Put(ctx, "doc", []byte("v1"), storage.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)

	_, err = store.Put(ctx, "doc", []byte("v1b"), storage.PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, storage.ErrPreconditionFailed)

	obj, err := store.Get(ctx, "doc")
	require.NoError(t, err)

	name, err := store.Put(ctx, "doc", []byte("v2"), storage.PutOptions{IfMatch: obj.ETag, ContentType: "application/json"})
	require.NoError(t, err)
	require.Equal(t, "doc", name)
	require.Equal(t, "application/json", store.ContentType("doc"))

	// The old ETag is stale now.
	_, err = store.Put(ctx, "doc", []byte("v3"), storage.PutOptions{IfMatch: obj.ETag})
	require.ErrorIs(t, err, storage.ErrPreconditionFailed)

	// Unconditional writes always win.
	_, err = store.Put(ctx, "doc", []byte("v4"), storage.PutOptions{})
	require.NoError(t, err)

	obj, err = store.Get(ctx, "doc")
	require.NoError(t, err)
	require.Equal(t, "v4", string(obj.Data))
}

// TestStore_ObjectURL escapes each key segment.
func TestStore_ObjectURL(t *testing.T) {
	t.Parallel()

	store := New(WithBaseURL("https://cdn.example.com/"))
	require.Equal(t, "https://cdn.example.com/app/darwin/My%20App.dmg", store.ObjectURL("app/darwin/My App.dmg"))
	require.Equal(t, DefaultBaseURL+"/k", New().ObjectURL("k"))
}

// TestStore_DiscardUploadsKeepsMetadataOnly records size and ETag without file contents.
func TestStore_DiscardUploadsKeepsMetadataOnly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "App.zip")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0o600))

	var (
		ctx   = context.Background()
		store = New(WithDiscardUploads(), WithChunkSize(256))
	)

	var last float64

	require.NoError(t, store.Upload(ctx, "app/App.zip", path, func(f float64) { last = f }))
	require.InDelta(t, 1.0, last, 1e-9)
	require.Equal(t, []string{"app/App.zip"}, store.Keys())
	require.Equal(t, int64(1000), store.Size("app/App.zip"))

	obj, err := store.Get(ctx, "app/App.zip")
	require.NoError(t, err)
	require.Empty(t, obj.Data)
	require.NotEmpty(t, obj.ETag)

	_, err = store.Put(ctx, "RELEASES.json", []byte("{}"), storage.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "RELEASES.json")
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), doc.Data)
	require.Equal(t, int64(2), store.Size("RELEASES.json"))
}
