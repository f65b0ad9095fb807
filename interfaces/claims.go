package interfaces

import (
	"context"
	"time"
)

// ClaimStore is the durable claim table. Claims are never deleted.
type ClaimStore interface {
	// Create persists a new claim, assigning its id and timestamps.
	Create(ctx context.Context, claim *Claim) (*Claim, error)

	// Get returns the claim with id or ErrClaimNotFound.
	Get(ctx context.Context, id int64) (*Claim, error)

	// FindByToken returns the claim holding tokenID with status minted or revoked.
	FindByToken(ctx context.Context, tokenID uint64) (*Claim, error)

	// List returns claims matching filter, newest first.
	List(ctx context.Context, filter ClaimFilter) ([]*Claim, error)

	// Stats summarizes the table relative to now.
	Stats(ctx context.Context, now time.Time) (ClaimStats, error)

	// AttachEvidence records the evidence reference of a claim.
	AttachEvidence(ctx context.Context, id int64, ref EvidenceRef) error

	// Transition atomically checks that the claim is in status from, applies
	// mutate to a copy and commits the full result. On a status mismatch it
	// returns a *ConflictError and writes nothing. An error from mutate aborts
	// the transition.
	Transition(ctx context.Context, id int64, from ClaimStatus, action string, mutate func(*Claim) error) (*Claim, error)
}
