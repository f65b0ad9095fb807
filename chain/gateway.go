package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/metrics"
	"golang.org/x/sync/singleflight"
)

// Backend is the Ethereum client used by the gateway.
// *ethclient.Client and the simulated backend client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainIDReader
}

// Dialer opens a Backend for an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthclient dials an Ethereum JSON-RPC endpoint.
func DialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// Config holds the gateway configuration. Every field may be empty at
// construction; missing values are reported at first use.
type Config struct {
	RPCURL          string
	ContractAddress string
	IssuerKey       *ecdsa.PrivateKey

	// ChainID overrides the chain id reported by the node.
	ChainID *big.Int

	ConfirmationTimeout time.Duration
	Fees                FeePolicy

	// Dial defaults to DialEthclient.
	Dial Dialer
}

const DefaultConfirmationTimeout = 120 * time.Second

// Gateway implements interfaces.ChainGateway for the credential contract.
type Gateway struct {
	cfg Config
	log *slog.Logger

	dial singleflight.Group

	mu       sync.RWMutex
	backend  Backend
	chainID  *big.Int
	contract common.Address
	bound    *bind.BoundContract

	// sendMu serializes nonce selection and submission for the issuer account.
	sendMu sync.Mutex
}

var _ interfaces.ChainGateway = (*Gateway)(nil)

// NewGateway creates a gateway. It never fails and does not connect.
func NewGateway(cfg Config, log *slog.Logger) *Gateway {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if cfg.Fees.PriorityTip == nil {
		cfg.Fees = DefaultFeePolicy()
	}
	if cfg.Dial == nil {
		cfg.Dial = DialEthclient
	}
	return &Gateway{cfg: cfg, log: log}
}

// connect returns the shared backend, dialing it on first use.
func (g *Gateway) connect(ctx context.Context) (Backend, error) {
	g.mu.RLock()
	backend := g.backend
	g.mu.RUnlock()
	if backend != nil {
		return backend, nil
	}

	if g.cfg.RPCURL == "" {
		return nil, fmt.Errorf("%w: RPC endpoint not set", interfaces.ErrNotConfigured)
	}
	if !common.IsHexAddress(g.cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: invalid contract address %q", interfaces.ErrNotConfigured, g.cfg.ContractAddress)
	}

	v, err, _ := g.dial.Do("connect", func() (any, error) {
		g.mu.RLock()
		existing := g.backend
		g.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		g.log.Info("Connecting to Ethereum RPC", slog.String("contract", g.cfg.ContractAddress))
		b, err := g.cfg.Dial(ctx, g.cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Ethereum network: %w", err)
		}

		chainID := g.cfg.ChainID
		if chainID == nil {
			chainID, err = b.ChainID(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read chain id: %w", err)
			}
		}

		contract := common.HexToAddress(g.cfg.ContractAddress)

		g.mu.Lock()
		g.backend = b
		g.chainID = chainID
		g.contract = contract
		g.bound = bind.NewBoundContract(contract, credentialABI, b, b, b)
		g.mu.Unlock()

		g.log.Info("Connected to Ethereum RPC", slog.String("chainID", chainID.String()))
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Backend), nil
}

// Mint mints a credential token to recipient with the given metadata URI.
// A zero TokenID in the result means the id could not be extracted and the
// claim needs manual reconciliation.
func (g *Gateway) Mint(ctx context.Context, recipient interfaces.WalletAddress, metadataURI string) (interfaces.MintResult, error) {
	receipt, err := g.transact(ctx, "mint", recipient.Address(), metadataURI)
	if err != nil {
		return interfaces.MintResult{}, err
	}

	txHash := receipt.TxHash.Hex()
	tokenID, ok := TokenIDFromReceipt(receipt, g.contractAddress())
	if !ok {
		g.log.Warn("Could not parse token ID from logs, claim requires manual reconciliation",
			slog.String("txHash", txHash))
		tokenID = 0
	}

	g.log.Info("Credential minted",
		slog.Uint64("tokenID", tokenID),
		slog.String("txHash", txHash),
		slog.String("recipient", recipient.String()))

	return interfaces.MintResult{TokenID: tokenID, TxHash: txHash}, nil
}

// Revoke revokes a credential token on chain.
func (g *Gateway) Revoke(ctx context.Context, tokenID uint64) (string, error) {
	receipt, err := g.transact(ctx, "revoke", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}

	g.log.Info("Credential revoked",
		slog.Uint64("tokenID", tokenID),
		slog.String("txHash", receipt.TxHash.Hex()))
	return receipt.TxHash.Hex(), nil
}

// Verify reads the on-chain state of a token. Any read error yields
// Exists=false with the error detail.
func (g *Gateway) Verify(ctx context.Context, tokenID uint64) interfaces.OnchainCredential {
	result := interfaces.OnchainCredential{TokenID: tokenID}

	if _, err := g.connect(ctx); err != nil {
		result.Error = err.Error()
		return result
	}

	contract := g.boundContract()
	opts := &bind.CallOpts{Context: ctx}
	id := new(big.Int).SetUint64(tokenID)

	owner, err := callOne[common.Address](contract, opts, "ownerOf", id)
	if err != nil {
		g.log.Debug("Credential not readable on chain", slog.Uint64("tokenID", tokenID), "err", err)
		result.Error = err.Error()
		return result
	}
	uri, err := callOne[string](contract, opts, "tokenURI", id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	revoked, err := callOne[bool](contract, opts, "isRevoked", id)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Exists = true
	result.Owner = owner.Hex()
	result.URI = uri
	result.Revoked = revoked
	return result
}

func (g *Gateway) contractAddress() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.contract
}

func (g *Gateway) boundContract() *bind.BoundContract {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bound
}

// transact submits a dynamic-fee transaction calling method on the contract,
// then waits for a successful receipt.
func (g *Gateway) transact(ctx context.Context, method string, args ...any) (receipt *types.Receipt, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSince(metrics.ChainTxDuration.WithLabelValues(method, metrics.Outcome(err)), start)
	}()

	backend, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	if g.cfg.IssuerKey == nil {
		return nil, fmt.Errorf("%w: issuer signing key not set", interfaces.ErrNotConfigured)
	}

	tx, err := g.submit(ctx, backend, method, args...)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.cfg.ConfirmationTimeout)
	defer cancel()

	receipt, err = bind.WaitMined(waitCtx, backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tx %s", interfaces.ErrConfirmationTimeout, tx.Hash().Hex())
		}
		return nil, fmt.Errorf("waiting for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted in tx %s", interfaces.ErrTransactionFailed, method, tx.Hash().Hex())
	}
	return receipt, nil
}

func (g *Gateway) submit(ctx context.Context, backend Backend, method string, args ...any) (*types.Transaction, error) {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	g.mu.RLock()
	chainID := g.chainID
	contract := g.contract
	bound := g.bound
	g.mu.RUnlock()

	auth, err := bind.NewKeyedTransactorWithChainID(g.cfg.IssuerKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	data, err := credentialABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}
	gasEstimate, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From: auth.From,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas for %s: %w", method, err)
	}

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}
	auth.GasTipCap, auth.GasFeeCap = g.cfg.Fees.Fees(head.BaseFee)
	auth.GasLimit = g.cfg.Fees.GasLimit(gasEstimate)

	g.log.Info("Gas pricing",
		slog.String("op", method),
		slog.String("baseFee", fmt.Sprint(head.BaseFee)),
		slog.String("maxFee", auth.GasFeeCap.String()),
		slog.String("priorityFee", auth.GasTipCap.String()),
		slog.Uint64("gasLimit", auth.GasLimit))

	tx, err := bound.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s transaction: %w", method, err)
	}

	g.log.Info("Transaction sent", slog.String("op", method), slog.String("txHash", tx.Hash().Hex()))
	return tx, nil
}

// TokenIDFromReceipt extracts the id of the token minted by the contract
// from the Transfer(0x0, to, tokenId) log of the receipt.
func TokenIDFromReceipt(receipt *types.Receipt, contract common.Address) (uint64, bool) {
	if receipt == nil {
		return 0, false
	}
	for _, l := range receipt.Logs {
		if l == nil || l.Address != contract || len(l.Topics) != 4 {
			continue
		}
		if l.Topics[0] != transferTopic || l.Topics[1] != (common.Hash{}) {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[3].Bytes())
		if !id.IsUint64() {
			return 0, false
		}
		return id.Uint64(), true
	}
	return 0, false
}

func callOne[T any](contract *bind.BoundContract, opts *bind.CallOpts, method string, args ...any) (T, error) {
	var zero T

	var out []any
	if err := contract.Call(opts, &out, method, args...); err != nil {
		return zero, fmt.Errorf("%s call failed: %w", method, err)
	}
	if len(out) != 1 {
		return zero, fmt.Errorf("unexpected %s result length %d", method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return v, nil
}
