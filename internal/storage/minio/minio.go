// Package minio implements storage.Client on top of minio-go for any
// S3-compatible endpoint (MinIO, Ceph, R2, OSS in S3 mode).
//
// Manifest writes are conditional (If-Match / If-None-Match). Endpoints that
// answer NotImplemented to conditional PUTs get an unconditional write instead,
// which loses protection against concurrent publishers.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/storage"
)

const (
	codeNoSuchKey          = "NoSuchKey"
	codePreconditionFailed = "PreconditionFailed"
	codeNotImplemented     = "NotImplemented"
)

var (
	errEndpointRequired = errors.New("minio endpoint is required")
	errBucketRequired   = errors.New("minio bucket is required")
)

// Options configure the MinIO client.
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UseSSL          bool
	// PublicBaseURL replaces the endpoint when building download URLs, e.g. a CDN.
	PublicBaseURL string
	// PartSize is the multipart chunk size; zero lets minio-go decide.
	PartSize uint64
	// AppName and AppVersion are appended to the User-Agent header.
	AppName    string
	AppVersion string
}

// Store implements storage.Client for S3-compatible endpoints.
type Store struct {
	client        *minio.Client
	bucket        string
	partSize      uint64
	publicBaseURL *url.URL
}

// New creates a MinIO-backed store. It performs no network calls.
func New(opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, errEndpointRequired
	}

	if opts.Bucket == "" {
		return nil, errBucketRequired
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if opts.AppName != "" {
		client.SetAppInfo(opts.AppName, opts.AppVersion)
	}

	return NewWithClient(client, opts.Bucket, opts.PublicBaseURL, opts.PartSize)
}

// NewWithClient wraps an existing minio client.
func NewWithClient(client *minio.Client, bucket, publicBaseURL string, partSize uint64) (*Store, error) {
	s := &Store{
		client:   client,
		bucket:   bucket,
		partSize: partSize,
	}

	if publicBaseURL != "" {
		u, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse public base url: %w", err)
		}

		s.publicBaseURL = u
	}

	return s, nil
}

// Upload streams a local file to key; minio-go switches to multipart for large files.
func (s *Store) Upload(ctx context.Context, key, localPath string, onProgress storage.ProgressFunc) error {
	localPath = filepath.Clean(localPath)

	info, err := os.Stat(localPath)
	if err != nil {
		return storage.NewError("upload", key, err)
	}

	opts := minio.PutObjectOptions{
		ContentType: storage.DetectContentType(localPath),
		PartSize:    s.partSize,
	}

	if onProgress != nil {
		opts.Progress = storage.NewCounter(info.Size(), onProgress)
	}

	if _, err = s.client.FPutObject(ctx, s.bucket, key, localPath, opts); err != nil {
		return storage.NewError("upload", key, err)
	}

	return nil
}

// Get fetches the object at key.
func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, storage.NewError("get", key, mapError(err))
	}

	defer func() {
		_ = obj.Close()
	}()

	stat, err := obj.Stat()
	if err != nil {
		return nil, storage.NewError("get", key, mapError(err))
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, storage.NewError("get", key, mapError(err))
	}

	return &storage.Object{
		Data: data,
		ETag: stat.ETag,
	}, nil
}

// Put writes data to key, optionally conditional on the current ETag.
func (s *Store) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (string, error) {
	putOpts := minio.PutObjectOptions{
		ContentType: opts.ContentType,
	}

	conditional := true

	switch {
	case opts.IfMatch != "":
		putOpts.SetMatchETag(opts.IfMatch)
	case opts.IfNoneMatch:
		putOpts.SetMatchETagExcept("*")
	default:
		conditional = false
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), putOpts)
	if err != nil && conditional && notImplemented(err) {
		logger.WarnKV(ctx, "Endpoint rejects conditional writes, writing unconditionally", "key", key, "error", err)

		unconditional := minio.PutObjectOptions{ContentType: opts.ContentType}
		info, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), unconditional)
	}

	if err != nil {
		return "", storage.NewError("put", key, mapError(err))
	}

	return info.Key, nil
}

func notImplemented(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == codeNotImplemented || resp.StatusCode == http.StatusNotImplemented
}

// ObjectURL returns the download URL of key, preferring the public base URL.
func (s *Store) ObjectURL(key string) string {
	if s.publicBaseURL != nil {
		u := *s.publicBaseURL
		u.Path = strings.TrimRight(u.Path, "/") + "/" + key

		return u.String()
	}

	u := *s.client.EndpointURL()
	u.Path = "/" + s.bucket + "/" + key

	return u.String()
}

func mapError(err error) error {
	resp := minio.ToErrorResponse(err)

	switch {
	case resp.Code == codeNoSuchKey || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket"):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case resp.Code == codePreconditionFailed || resp.StatusCode == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %w", storage.ErrPreconditionFailed, err)
	default:
		return err
	}
}
