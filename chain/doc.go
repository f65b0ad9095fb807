// Package chain mediates all interaction with the credential NFT contract.
//
// Gateway implements interfaces.ChainGateway:
//
//   - Mint submits mint(recipient, uri) from the issuer account, waits for the
//     receipt and extracts the token id from the Transfer event of the mint
//   - Revoke submits revoke(tokenId) with the same submission discipline
//   - Verify reads ownerOf, tokenURI and isRevoked without ever failing
//
// # Connection
//
// NewGateway never fails and never dials. The first operation that needs the
// network establishes the connection; concurrent first callers share a single
// dial and later operations reuse it. A missing RPC endpoint, contract address
// or issuer key surfaces as interfaces.ErrNotConfigured at first use.
//
// # Fees
//
// Transactions are EIP-1559 dynamic-fee transactions. FeePolicy derives the
// tip and fee cap from the latest base fee and pads the estimated gas limit.
//
// # Confirmation
//
// Receipts are polled until they arrive or Config.ConfirmationTimeout
// elapses. A timeout or a failed receipt is a transaction-level error.
package chain
