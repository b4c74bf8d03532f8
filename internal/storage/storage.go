package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrPreconditionFailed is returned by Put when a conditional write loses a race.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// ProgressFunc receives the transferred fraction of an upload in the [0, 1] range.
type ProgressFunc func(fraction float64)

// Object is a fetched object with the ETag it had when it was read.
type Object struct {
	Data []byte
	ETag string
}

// PutOptions control a single-shot object write.
type PutOptions struct {
	// ContentType is stored with the object.
	ContentType string
	// IfMatch makes the write conditional on the object still having this ETag.
	IfMatch string
	// IfNoneMatch makes the write conditional on the object not existing yet.
	IfNoneMatch bool
}

// Client is the capability set a publish run requires from an object store.
type Client interface {
	// Upload transfers a local file to key, splitting it into parts when the backend
	// decides to, and reports progress through onProgress (which may be nil).
	Upload(ctx context.Context, key, localPath string, onProgress ProgressFunc) error
	// Get fetches the whole object stored at key.
	Get(ctx context.Context, key string) (*Object, error)
	// Put replaces the object at key with data and returns the stored object name.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (string, error)
	// ObjectURL derives the public download URL of key.
	ObjectURL(key string) string
}

// Error describes a failed storage operation.
type Error struct {
	// Op is the operation that failed ("upload", "get", "put").
	Op string
	// Key is the object key involved.
	Key string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation and key that produced it.
func NewError(op, key string, err error) *Error {
	return &Error{
		Op:  op,
		Key: key,
		Err: err,
	}
}
