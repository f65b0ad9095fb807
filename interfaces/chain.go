package interfaces

import "context"

// MintResult carries the chain artifacts of a confirmed mint.
// TokenID is 0 when it could not be extracted from the receipt and the claim
// requires manual reconciliation.
type MintResult struct {
	TokenID uint64
	TxHash  string
}

// ChainGateway mediates all blockchain reads and writes.
type ChainGateway interface {
	// Mint submits a mint transaction to recipient and waits for confirmation.
	Mint(ctx context.Context, recipient WalletAddress, metadataURI string) (MintResult, error)

	// Revoke submits a revoke transaction and waits for confirmation.
	Revoke(ctx context.Context, tokenID uint64) (txHash string, err error)

	// Verify reads token state. It never fails; read errors yield Exists=false.
	Verify(ctx context.Context, tokenID uint64) OnchainCredential
}

// MetadataPublisher converts a metadata document into a durable,
// content-addressed URI.
type MetadataPublisher interface {
	Publish(ctx context.Context, doc CredentialMetadata) (string, error)

	// Name returns identifier for logging.
	Name() string
}
