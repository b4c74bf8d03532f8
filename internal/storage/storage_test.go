package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestCause = errors.New("connection reset")

// TestError_WrapsCause ensures errors.Is sees through *Error.
func TestError_WrapsCause(t *testing.T) {
	t.Parallel()

	err := NewError("put", "app/RELEASES.json", errTestCause)
	require.ErrorIs(t, err, errTestCause)
	require.Equal(t, "storage put app/RELEASES.json: connection reset", err.Error())
	require.Equal(t, "storage get: connection reset", NewError("get", "", errTestCause).Error())
}

// TestCounter_ReportsClampedFractions checks reporting from the reader hook and Add.
func TestCounter_ReportsClampedFractions(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		fractions []float64
	)

	counter := NewCounter(10, func(f float64) {
		mu.Lock()
		defer mu.Unlock()

		fractions = append(fractions, f)
	})

	n, err := counter.Read(make([]byte, 4))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	counter.Add(6)

	// Retries can push the byte count past the total.
	counter.Add(5)

	require.NotEmpty(t, fractions)
	require.InDelta(t, 0.4, fractions[0], 1e-9)
	require.InDelta(t, 1.0, fractions[len(fractions)-1], 1e-9)

	for _, f := range fractions {
		require.LessOrEqual(t, f, 1.0)
	}
}

// TestCounter_ZeroTotal never calls back for empty transfers.
func TestCounter_ZeroTotal(t *testing.T) {
	t.Parallel()

	called := false
	counter := NewCounter(0, func(float64) { called = true })
	counter.Add(10)

	require.False(t, called)
}

// TestDetectContentType sniffs known content and falls back for missing files.
func TestDetectContentType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o600))

	require.Equal(t, "application/json", DetectContentType(path))
	require.Equal(t, contentTypeBinary, DetectContentType(filepath.Join(dir, "missing.bin")))
}
