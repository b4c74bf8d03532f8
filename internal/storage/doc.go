// Package storage defines the object-store capabilities a publish run needs.
//
// Client is implemented by the minio, s3 and memory subpackages. Backends map
// their own "missing object" and "precondition failed" responses to ErrNotFound
// and ErrPreconditionFailed and wrap every failure in *Error so callers can
// tell which operation and key failed.
package storage
