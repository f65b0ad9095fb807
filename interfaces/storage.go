package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// EvidenceStore persists opaque evidence blobs by key. Evidence is private and
// is never placed on public infrastructure.
type EvidenceStore interface {
	// Put stores data under key, overwriting any previous blob.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under key or ErrEvidenceNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name returns identifier for logging.
	Name() string
}

// HashEvidence returns the hex-encoded SHA-256 digest of data.
func HashEvidence(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
