// Package interfaces defines the core types and capability interfaces of the
// credential-claim backend, separating contracts from their implementations.
//
// # Domain Types
//
//   - Claim: a student's request for a credential and its review/mint lifecycle state
//   - ClaimStatus: pending, approved, denied, minted, revoked
//   - CredentialType: micro-credential, course-completion, diploma
//   - EvidenceRef: private evidence attachment (storage key, filename, SHA-256 hash)
//   - CredentialMetadata: the public document pinned for a minted token
//   - OnchainCredential: result of a read-only token lookup on chain
//   - VerifierLink: short-lived capability granting access to a claim's personal data
//
// # Capability Interfaces
//
//   - EvidenceStore: opaque blob storage for evidence (local disk or object storage)
//   - MetadataPublisher: turns a metadata document into a content-addressed URI
//   - ChainGateway: mint, revoke and verify credential tokens
//   - ClaimStore: durable claim records with compare-and-set status transitions
//
// Concrete implementations are selected once at startup from configuration.
//
// # Errors
//
// Sentinel errors and ConflictError form the error taxonomy shared by the
// lifecycle engine, the disclosure service and the HTTP layer.
package interfaces
