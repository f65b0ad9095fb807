package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks user-correctable input errors. Nothing is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrClaimNotFound is returned when a claim id or token id has no record.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrForbidden is returned when the caller is not allowed to perform an action.
	// Messages built on it stay generic.
	ErrForbidden = errors.New("forbidden")

	// ErrLinkInvalid covers both unknown and expired disclosure tokens so
	// callers cannot tell the two apart.
	ErrLinkInvalid = errors.New("invalid or expired verifier link")

	// ErrNotConfigured is returned at first use when a component lacks the
	// configuration it needs (RPC endpoint, signing key).
	ErrNotConfigured = errors.New("not configured")

	// ErrMintInProgress is returned when chain work for the same claim is
	// already outstanding.
	ErrMintInProgress = errors.New("chain operation already in progress for claim")

	// ErrEvidenceNotFound is returned by evidence stores for unknown keys.
	ErrEvidenceNotFound = errors.New("evidence not found")

	// ErrTransactionFailed is returned when a receipt reports a failed transaction.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmationTimeout is returned when a receipt does not arrive in time.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// ConflictError reports a lifecycle precondition violation. Current is the
// claim's status at the time of the check.
type ConflictError struct {
	Current ClaimStatus
	Action  string
	Reason  string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("claim is already %s", e.Current)
}

// NewConflict builds a ConflictError naming the current status.
func NewConflict(current ClaimStatus, action string) *ConflictError {
	return &ConflictError{Current: current, Action: action}
}

// IsConflict reports whether err is a ConflictError or ErrMintInProgress.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce) || errors.Is(err, ErrMintInProgress)
}
