package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// MockPublisher derives a CID-shaped identifier from the document digest.
// It is pure: Publish(d) == Publish(d) for identical documents.
type MockPublisher struct {
	log *slog.Logger
}

func NewMockPublisher(log *slog.Logger) *MockPublisher {
	return &MockPublisher{log: log}
}

func (p *MockPublisher) Publish(ctx context.Context, doc interfaces.CredentialMetadata) (string, error) {
	data, err := CanonicalJSON(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	// "Qm" + 44 hex chars keeps the length of a CIDv0.
	uri := "ipfs://Qm" + hex.EncodeToString(sum[:])[:44]

	p.log.Debug("Published metadata (mock)", slog.String("uri", uri))
	return uri, nil
}

func (p *MockPublisher) Name() string {
	return "mock"
}
