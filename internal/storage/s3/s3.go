// Package s3 implements storage.Client with the AWS SDK for Go v2.
//
// Uploads go through the SDK transfer manager, which splits large files into
// parts and uploads them concurrently. Manifest writes use S3 conditional
// writes (If-Match / If-None-Match); custom endpoints answering NotImplemented
// get an unconditional write instead.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/storage"
)

// defaultRegion is used when neither options nor the environment provide one.
const defaultRegion = "us-east-1"

var errBucketRequired = errors.New("s3 bucket is required")

// API is the subset of the S3 client used by Store.
type API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configure the S3 client.
type Options struct {
	Region string
	Bucket string
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ForcePathStyle  bool
	// PublicBaseURL replaces the bucket URL when building download URLs.
	PublicBaseURL string
	// PartSize is the multipart chunk size; zero keeps the SDK default.
	PartSize int64
	// AppID is reported in the SDK user agent.
	AppID string
}

// Store implements storage.Client for Amazon S3.
type Store struct {
	api      API
	bucket   string
	baseURL  string
	partSize int64
}

// New loads the AWS configuration (default credential chain unless static keys are
// given) and builds the store. It performs no network calls.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errBucketRequired
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithAppID(opts.AppID),
	}

	if opts.Region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(opts.Region))
	}

	if opts.AccessKeyID != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}

		o.UsePathStyle = opts.ForcePathStyle
	})

	return NewWithAPI(client, opts.Bucket, bucketURL(opts, cfg.Region), opts.PartSize), nil
}

// NewWithAPI wraps an existing S3 API implementation. baseURL is the prefix
// object keys are appended to when building download URLs.
func NewWithAPI(api API, bucket, baseURL string, partSize int64) *Store {
	return &Store{
		api:      api,
		bucket:   bucket,
		baseURL:  strings.TrimRight(baseURL, "/"),
		partSize: partSize,
	}
}

// Upload streams a local file through the transfer manager. Progress advances
// when S3 acknowledges a part, or the whole object for single-part uploads.
func (s *Store) Upload(ctx context.Context, key, localPath string, onProgress storage.ProgressFunc) error {
	localPath = filepath.Clean(localPath)

	file, err := os.Open(localPath)
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

	tracker := &partTracker{
		API:     s.api,
		counter: storage.NewCounter(info.Size(), onProgress),
	}

	uploader := manager.NewUploader(tracker, func(u *manager.Uploader) {
		if s.partSize >= manager.MinUploadPartSize {
			u.PartSize = s.partSize
		}
	})

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(storage.DetectContentType(localPath)),
	})
	if err != nil {
		return storage.NewError("upload", key, mapError(err))
	}

	return nil
}

// Get fetches the object at key.
func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	output, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, storage.NewError("get", key, mapError(err))
	}

	defer func() {
		_ = output.Body.Close()
	}()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, storage.NewError("get", key, err)
	}

	return &storage.Object{
		Data: data,
		ETag: aws.ToString(output.ETag),
	}, nil
}

// Put writes data to key using S3 conditional writes when requested.
func (s *Store) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}

	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	switch {
	case opts.IfMatch != "":
		input.IfMatch = aws.String(opts.IfMatch)
	case opts.IfNoneMatch:
		input.IfNoneMatch = aws.String("*")
	}

	_, err := s.api.PutObject(ctx, input)
	if err != nil && (input.IfMatch != nil || input.IfNoneMatch != nil) && notImplemented(err) {
		logger.WarnKV(ctx, "Endpoint rejects conditional writes, writing unconditionally", "key", key, "error", err)

		plain := *input
		plain.IfMatch, plain.IfNoneMatch = nil, nil
		plain.Body = bytes.NewReader(data)
		_, err = s.api.PutObject(ctx, &plain)
	}

	if err != nil {
		return "", storage.NewError("put", key, mapError(err))
	}

	return key, nil
}

func notImplemented(err error) bool {
	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotImplemented"
}

// ObjectURL returns the download URL of key.
func (s *Store) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return s.baseURL + "/" + strings.Join(segments, "/")
}

// partTracker counts the bytes of every part S3 acknowledged.
type partTracker struct {
	API

	counter *storage.Counter
}

func (t *partTracker) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	size := bodySize(in.Body, in.ContentLength)

	out, err := t.API.PutObject(ctx, in, optFns...)
	if err == nil {
		t.counter.Add(int(size))
	}

	return out, err
}

func (t *partTracker) UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	size := bodySize(in.Body, in.ContentLength)

	out, err := t.API.UploadPart(ctx, in, optFns...)
	if err == nil {
		t.counter.Add(int(size))
	}

	return out, err
}

// bodySize returns the declared length of a part body, or measures a seekable
// or in-memory body without consuming it.
func bodySize(body io.Reader, declared *int64) int64 {
	if declared != nil {
		return *declared
	}

	switch b := body.(type) {
	case interface{ Len() int }:
		return int64(b.Len())
	case io.Seeker:
		current, err := b.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0
		}

		end, err := b.Seek(0, io.SeekEnd)
		if _, seekErr := b.Seek(current, io.SeekStart); err != nil || seekErr != nil {
			return 0
		}

		return end - current
	default:
		return 0
	}
}

// bucketURL picks the public URL prefix: explicit base, custom endpoint, or AWS
// virtual-hosted style.
func bucketURL(opts Options, region string) string {
	if opts.PublicBaseURL != "" {
		return opts.PublicBaseURL
	}

	if opts.Endpoint != "" {
		endpoint := strings.TrimRight(opts.Endpoint, "/")
		if opts.ForcePathStyle {
			return endpoint + "/" + opts.Bucket
		}

		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			u.Host = opts.Bucket + "." + u.Host

			return u.String()
		}

		return endpoint + "/" + opts.Bucket
	}

	if opts.ForcePathStyle {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s", region, opts.Bucket)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
}

func mapError(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %w", storage.ErrPreconditionFailed, err)
		}
	}

	return err
}
