package chain

import (
	"context"

	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockGateway mocks the ChainGateway interface
type MockGateway struct {
	mock.Mock
}

var _ interfaces.ChainGateway = (*MockGateway)(nil)

// Mint mocks the Mint method
func (m *MockGateway) Mint(ctx context.Context, recipient interfaces.WalletAddress, metadataURI string) (interfaces.MintResult, error) {
	args := m.Called(ctx, recipient, metadataURI)
	return args.Get(0).(interfaces.MintResult), args.Error(1)
}

// Revoke mocks the Revoke method
func (m *MockGateway) Revoke(ctx context.Context, tokenID uint64) (string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.Error(1)
}

// Verify mocks the Verify method
func (m *MockGateway) Verify(ctx context.Context, tokenID uint64) interfaces.OnchainCredential {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(interfaces.OnchainCredential)
}
