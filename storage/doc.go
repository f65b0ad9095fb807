// Package storage provides the private evidence store with pluggable backends.
//
// Evidence uploaded with a claim is stored as an opaque blob under a
// generated key and is never placed on public infrastructure:
//
//   - File system storage for local development and single-node deployments
//   - S3-compatible object storage for cloud deployments
//
// # Storage URI Format
//
// The backend is selected once at startup from a location URI:
//
//	file:///absolute/path/            local directory
//	file://./relative/path/           local directory relative to the working dir
//	s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=eu-north-1&endpoint=minio:9000
//
// S3 credentials may also come from EvidenceStoreOptions; an S3 URI with no
// credentials at all falls back to local-disk storage.
//
// # Keys
//
// EvidenceKey builds the key of a claim's attachment
// (claim_<id>_<UTC timestamp>.<ext>), and AllowedEvidenceFile applies the
// extension allow-list. Keys are sanitized before use by every backend.
package storage
