// Package memory provides a process-local storage.Client.
//
// It backs dry runs and tests: objects live in a map, ETags change on every
// write, and uploads read the local file in chunks so progress callbacks fire
// the way they do against a real store. A store built WithDiscardUploads keeps
// only the size and ETag of uploaded files, so dry runs over large artifacts
// do not hold them in RAM.
package memory

import (
	"context"
	"crypto/md5" //nolint:gosec // ETags mirror S3 semantics, not a security boundary.
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oshokin/release-publisher/internal/storage"
)

// DefaultBaseURL prefixes object URLs when no base URL is configured.
const DefaultBaseURL = "memory://releases"

// defaultChunkSize is the read size used to simulate transfer progress.
const defaultChunkSize = 64 * 1024

// Store keeps objects in memory.
type Store struct {
	// baseURL prefixes generated object URLs.
	baseURL string
	// chunkSize is how many bytes each simulated transfer step moves.
	chunkSize int
	// discard drops uploaded file contents after hashing them.
	discard bool

	mu      sync.RWMutex
	objects map[string]entry
	version int
}

type entry struct {
	data        []byte
	size        int64
	etag        string
	contentType string
}

// Option configures a Store.
type Option func(*Store)

// WithBaseURL sets the prefix used by ObjectURL.
func WithBaseURL(baseURL string) Option {
	return func(s *Store) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithChunkSize sets the simulated transfer chunk size.
func WithChunkSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithDiscardUploads makes Upload keep only the size and ETag of a file.
// Objects written with Put are always kept.
func WithDiscardUploads() Option {
	return func(s *Store) {
		s.discard = true
	}
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		baseURL:   DefaultBaseURL,
		chunkSize: defaultChunkSize,
		objects:   make(map[string]entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Upload copies a local file into the store, reporting progress per chunk.
func (s *Store) Upload(ctx context.Context, key, localPath string, onProgress storage.ProgressFunc) error {
	file, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return storage.NewError("upload", key, err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return storage.NewError("upload", key, err)
	}

	var (
		counter = storage.NewCounter(info.Size(), onProgress)
		digest  = md5.New() //nolint:gosec // See import comment.
		buf     = make([]byte, s.chunkSize)
		data    []byte
		size    int64
	)

	if !s.discard {
		data = make([]byte, 0, info.Size())
	}

	for {
		if err = ctx.Err(); err != nil {
			return storage.NewError("upload", key, err)
		}

		n, readErr := file.Read(buf)
		if n > 0 {
			_, _ = digest.Write(buf[:n])
			if !s.discard {
				data = append(data, buf[:n]...)
			}

			size += int64(n)
			counter.Add(n)
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return storage.NewError("upload", key, readErr)
		}
	}

	s.store(key, entry{
		data:        data,
		size:        size,
		contentType: storage.DetectContentType(localPath),
	}, digest.Sum(nil))

	return nil
}

// Get returns a copy of the object at key.
func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewError("get", key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, storage.NewError("get", key, storage.ErrNotFound)
	}

	return &storage.Object{
		Data: append([]byte(nil), e.data...),
		ETag: e.etag,
	}, nil
}

// Put stores data at key, honoring IfMatch and IfNoneMatch preconditions.
func (s *Store) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storage.NewError("put", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.objects[key]

	switch {
	case opts.IfNoneMatch && exists:
		return "", storage.NewError("put", key, storage.ErrPreconditionFailed)
	case opts.IfMatch != "" && (!exists || current.etag != opts.IfMatch):
		return "", storage.NewError("put", key, storage.ErrPreconditionFailed)
	}

	digest := md5.Sum(data) //nolint:gosec // See import comment.

	s.storeLocked(key, entry{
		data:        append([]byte(nil), data...),
		size:        int64(len(data)),
		contentType: opts.ContentType,
	}, digest[:])

	return key, nil
}

// ObjectURL joins the base URL and the escaped key.
func (s *Store) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return s.baseURL + "/" + strings.Join(segments, "/")
}

// Keys returns the stored keys in lexical order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Size returns the number of bytes recorded for key, including discarded uploads.
func (s *Store) Size(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.objects[key].size
}

// ContentType returns the content type recorded for key.
func (s *Store) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.objects[key].contentType
}

func (s *Store) store(key string, e entry, digest []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeLocked(key, e, digest)
}

// storeLocked derives the ETag from the content digest and the write counter.
func (s *Store) storeLocked(key string, e entry, digest []byte) {
	s.version++

	hash := md5.New() //nolint:gosec // See import comment.
	_, _ = hash.Write(digest)
	_, _ = fmt.Fprintf(hash, "#%d", s.version)

	e.etag = hex.EncodeToString(hash.Sum(nil))
	s.objects[key] = e
}
