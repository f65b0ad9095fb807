package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// EvidenceStoreOptions carries credentials that are not part of the location URI.
type EvidenceStoreOptions struct {
	AccessKey string
	SecretKey string

	// FallbackDir is used when an s3:// location has no credentials.
	FallbackDir string
}

// NewEvidenceStore creates the evidence store described by locationURI.
//
// Supported schemes:
//   - file:// - local directory
//   - s3://   - Amazon S3 or compatible object storage
//
// An empty location selects local-disk storage in opts.FallbackDir.
func NewEvidenceStore(locationURI string, opts EvidenceStoreOptions, log *slog.Logger) (interfaces.EvidenceStore, error) {
	if locationURI == "" {
		log.Info("No evidence store configured, using local disk", slog.String("dir", opts.FallbackDir))
		return NewFileEvidenceStore(opts.FallbackDir, log)
	}

	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid evidence store URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "s3":
		return createS3Store(u, opts, log)
	case "file":
		return createFileStore(u, log)
	default:
		return nil, fmt.Errorf("unsupported evidence store scheme: %s", u.Scheme)
	}
}

// createS3Store parses s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=..&endpoint=..
// Credentials in the URI take precedence over opts.
func createS3Store(u *url.URL, opts EvidenceStoreOptions, log *slog.Logger) (interfaces.EvidenceStore, error) {
	query := u.Query()
	s3opts := S3Options{
		Bucket:    u.Host,
		Prefix:    strings.TrimPrefix(u.Path, "/"),
		Region:    query.Get("region"),
		Endpoint:  query.Get("endpoint"),
		AccessKey: opts.AccessKey,
		SecretKey: opts.SecretKey,
	}
	if u.User != nil {
		s3opts.AccessKey = u.User.Username()
		s3opts.SecretKey, _ = u.User.Password()
	}

	if s3opts.AccessKey == "" || s3opts.SecretKey == "" {
		log.Warn("No S3 credentials provided, falling back to local disk evidence store",
			slog.String("bucket", s3opts.Bucket),
			slog.String("dir", opts.FallbackDir))
		return NewFileEvidenceStore(opts.FallbackDir, log)
	}

	log.Debug("Creating S3 evidence store",
		slog.String("bucket", s3opts.Bucket),
		slog.String("region", s3opts.Region))
	return NewS3EvidenceStore(s3opts, log)
}

// createFileStore parses file:///absolute/path/ or file://./relative/path/.
func createFileStore(u *url.URL, log *slog.Logger) (interfaces.EvidenceStore, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", u.String())
	}
	return NewFileEvidenceStore(path, log)
}
