package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
)

// Storage providers understood by the publisher.
const (
	ProviderMinIO  = "minio"
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

const (
	// DefaultConfigFilename is the default filename for publisher settings.
	DefaultConfigFilename = "release-publisher.yaml"

	// DefaultManifestRetries bounds fetch-modify-write attempts after a conflict.
	DefaultManifestRetries = 3

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Storage holds object-store connection settings. Credential fields may reference
// environment variables as ${NAME}.
type Storage struct {
	// Provider selects the backend: minio, s3 or memory.
	Provider string `yaml:"provider"`
	// Endpoint is host[:port] for minio or an optional URL for s3.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Region of the bucket.
	Region string `yaml:"region,omitempty"`
	// Bucket receiving artifacts and manifests.
	Bucket string `yaml:"bucket"`
	// AccessKeyID for static credentials.
	AccessKeyID string `yaml:"access_key_id,omitempty"`
	// SecretAccessKey for static credentials.
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	// SessionToken for temporary credentials.
	SessionToken string `yaml:"session_token,omitempty"`
	// UseSSL enables TLS for minio endpoints.
	UseSSL bool `yaml:"use_ssl"`
	// ForcePathStyle addresses the bucket in the URL path instead of the host.
	ForcePathStyle bool `yaml:"force_path_style,omitempty"`
	// PublicBaseURL is the prefix of download URLs written to manifests.
	PublicBaseURL string `yaml:"public_base_url,omitempty"`
	// PartSize is the multipart chunk size in bytes; zero keeps the backend default.
	PartSize int64 `yaml:"part_size,omitempty"`
}

// Config holds publisher settings.
type Config struct {
	// Storage is the object-store connection.
	Storage Storage `yaml:"storage"`
	// BasePath overrides the per-package key prefix and roots manifest keys.
	BasePath string `yaml:"base_path,omitempty"`
	// InstallerExtensions lists extensions eligible as the release marker.
	InstallerExtensions []string `yaml:"installer_extensions,omitempty"`
	// NotesTemplate renders release notes; {version} is substituted.
	NotesTemplate string `yaml:"notes_template,omitempty"`
	// ManifestRetries bounds manifest update attempts after a concurrent modification.
	ManifestRetries int `yaml:"manifest_retries,omitempty"`
	// Timeout bounds the whole publish run; zero means no deadline.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// LogLevel is used when no --log-level flag is given.
	LogLevel string `yaml:"log_level,omitempty"`
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errProviderRequired is returned when no storage provider is configured.
	errProviderRequired = errors.New("storage provider must be provided")
	// errUnknownProvider is returned for unsupported storage providers.
	errUnknownProvider = errors.New("unknown storage provider")
	// errBucketRequired is returned when a remote provider has no bucket.
	errBucketRequired = errors.New("storage bucket must be provided")
	// errEndpointRequired is returned when minio has no endpoint.
	errEndpointRequired = errors.New("storage endpoint must be provided for minio")
	// errNegativeValue is returned for negative numeric settings.
	errNegativeValue = errors.New("value must not be negative")
	// errBadLogLevel is returned for unknown log levels.
	errBadLogLevel = errors.New("unknown log level")
)

// DefaultInstallerExtensions are the release-marker extensions used when none are configured.
func DefaultInstallerExtensions() []string {
	return []string{".dmg", ".exe"}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg.Storage.expandEnv()

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold credentials.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}

	cfg.BasePath = strings.Trim(strings.TrimSpace(cfg.BasePath), "/")

	if len(cfg.InstallerExtensions) == 0 {
		cfg.InstallerExtensions = DefaultInstallerExtensions()
	}

	cfg.InstallerExtensions = normalizeExtensions(cfg.InstallerExtensions)

	if cfg.NotesTemplate == "" {
		cfg.NotesTemplate = release.DefaultNotesTemplate
	}

	switch {
	case cfg.ManifestRetries < 0:
		return fmt.Errorf("manifest_retries: %w", errNegativeValue)
	case cfg.ManifestRetries == 0:
		cfg.ManifestRetries = DefaultManifestRetries
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout: %w", errNegativeValue)
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errBadLogLevel, cfg.LogLevel)
	}

	return nil
}

func validateStorage(s *Storage) error {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))

	switch s.Provider {
	case "":
		return errProviderRequired
	case ProviderMemory:
		return validatePublicBaseURL(s.PublicBaseURL)
	case ProviderMinIO:
		if s.Endpoint == "" {
			return errEndpointRequired
		}
	case ProviderS3:
		if s.Endpoint != "" {
			if _, err := url.ParseRequestURI(s.Endpoint); err != nil {
				return fmt.Errorf("invalid s3 endpoint: %w", err)
			}
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownProvider, s.Provider)
	}

	if s.Bucket == "" {
		return errBucketRequired
	}

	if s.PartSize < 0 {
		return fmt.Errorf("part_size: %w", errNegativeValue)
	}

	return validatePublicBaseURL(s.PublicBaseURL)
}

func validatePublicBaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(raw); err != nil {
		return fmt.Errorf("invalid public base url: %w", err)
	}

	return nil
}

// normalizeExtensions lower-cases extensions, adds a leading dot and drops duplicates.
func normalizeExtensions(extensions []string) []string {
	result := make([]string, 0, len(extensions))

	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		if !slices.Contains(result, ext) {
			result = append(result, ext)
		}
	}

	return result
}

func (s *Storage) expandEnv() {
	s.AccessKeyID = os.ExpandEnv(s.AccessKeyID)
	s.SecretAccessKey = os.ExpandEnv(s.SecretAccessKey)
	s.SessionToken = os.ExpandEnv(s.SessionToken)
}
