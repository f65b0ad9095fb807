package interfaces

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	StatusPending  ClaimStatus = "pending"
	StatusApproved ClaimStatus = "approved"
	StatusDenied   ClaimStatus = "denied"
	StatusMinted   ClaimStatus = "minted"
	StatusRevoked  ClaimStatus = "revoked"
)

func (s ClaimStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known lifecycle states.
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusMinted, StatusRevoked:
		return true
	}
	return false
}

// CredentialType is the kind of credential being claimed.
type CredentialType string

const (
	CredentialMicro   CredentialType = "micro-credential"
	CredentialCourse  CredentialType = "course-completion"
	CredentialDiploma CredentialType = "diploma"
)

// ParseCredentialType normalizes a credential type, accepting the short
// aliases "micro" and "course".
func ParseCredentialType(s string) (CredentialType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "micro-credential", "micro":
		return CredentialMicro, nil
	case "course-completion", "course":
		return CredentialCourse, nil
	case "diploma":
		return CredentialDiploma, nil
	default:
		return "", fmt.Errorf("%w: unknown credential type %q", ErrValidation, s)
	}
}

// WalletAddress is a normalized (lower-case, 0x-prefixed) account address.
type WalletAddress string

// ParseWalletAddress validates a 20-byte hex account address and returns it
// in lower-case form.
func ParseWalletAddress(s string) (WalletAddress, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: invalid wallet address %q", ErrValidation, s)
	}
	return WalletAddress(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

// Equal compares two addresses case-insensitively.
func (w WalletAddress) Equal(other string) bool {
	return w != "" && strings.EqualFold(string(w), strings.TrimSpace(other))
}

// Address converts the wallet to a go-ethereum address.
func (w WalletAddress) Address() common.Address {
	return common.HexToAddress(string(w))
}

func (w WalletAddress) String() string {
	return string(w)
}

// EvidenceRef points to a privately stored evidence blob. Either all fields
// are set or the claim has no evidence at all.
type EvidenceRef struct {
	Key      string `json:"key"`
	FileName string `json:"file_name"`
	Hash     string `json:"hash"`
}

// Valid reports whether all evidence fields are present.
func (e *EvidenceRef) Valid() bool {
	if e == nil {
		return false
	}
	if e.Key == "" || e.FileName == "" || len(e.Hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(e.Hash)
	return err == nil
}

// Claim is the central record of the credential workflow.
type Claim struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time

	StudentName   string
	StudentEmail  string
	WalletAddress WalletAddress

	CredentialType CredentialType
	CourseCode     string
	Description    string

	Evidence *EvidenceRef

	Status ClaimStatus

	ReviewedBy      string
	InstructorNotes string
	ApprovedAt      *time.Time
	MintedAt        *time.Time

	// Chain artifacts, set together when the claim is minted.
	TokenID     *uint64
	MetadataURI string
	TxHash      string
}

// HasWallet reports whether a wallet address was bound at submission.
func (c *Claim) HasWallet() bool {
	return c.WalletAddress != ""
}

// HasToken reports whether chain artifacts are recorded.
func (c *Claim) HasToken() bool {
	return c.TokenID != nil
}

// NeedsReconciliation is true for minted claims whose token id could not be
// extracted from the mint receipt and was recorded as 0.
func (c *Claim) NeedsReconciliation() bool {
	return c.TokenID != nil && *c.TokenID == 0
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Evidence != nil {
		ev := *c.Evidence
		cp.Evidence = &ev
	}
	if c.ApprovedAt != nil {
		t := *c.ApprovedAt
		cp.ApprovedAt = &t
	}
	if c.MintedAt != nil {
		t := *c.MintedAt
		cp.MintedAt = &t
	}
	if c.TokenID != nil {
		id := *c.TokenID
		cp.TokenID = &id
	}
	return &cp
}

// CourseName returns the course name prefix of the description ("name: text"),
// or "N/A" when the description has none.
func (c *Claim) CourseName() string {
	name, _, found := strings.Cut(c.Description, ":")
	if !found {
		return "N/A"
	}
	return strings.TrimSpace(name)
}

// ClaimOrder selects the timestamp a listing is sorted by, newest first.
type ClaimOrder int

const (
	OrderByCreated ClaimOrder = iota
	OrderByApproved
	OrderByMinted
)

// ClaimFilter selects claims for listings. Zero values match everything.
type ClaimFilter struct {
	Status  ClaimStatus
	Wallet  WalletAddress
	OrderBy ClaimOrder
	Limit   int
}

// ClaimStats summarizes the claim table for the instructor dashboard.
type ClaimStats struct {
	Total        int `json:"total_claims"`
	Pending      int `json:"pending"`
	ApprovedWeek int `json:"approved_week"`
	TotalMinted  int `json:"total_minted"`
}

// CredentialAttribute is an ERC-721 style metadata trait.
type CredentialAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// CredentialMetadata is the public document pinned for a minted credential.
// It never carries the evidence itself, only its hash.
type CredentialMetadata struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	ExternalURL  string                `json:"external_url"`
	CourseCode   string                `json:"course_code"`
	Credential   CredentialType        `json:"credential_type"`
	Issuer       string                `json:"issuer"`
	Recipient    string                `json:"recipient_name"`
	IssueDate    string                `json:"issue_date"`
	EvidenceHash string                `json:"evidence_hash,omitempty"`
	Attributes   []CredentialAttribute `json:"attributes"`
}

// OnchainCredential is the result of a read-only token lookup.
// Exists is false on any read error, with Error carrying the detail.
type OnchainCredential struct {
	TokenID uint64
	Exists  bool
	Owner   string
	URI     string
	Revoked bool
	Error   string
}

// VerifierLink grants time-boxed access to a claim's personal data.
type VerifierLink struct {
	Token     string
	ClaimID   int64
	TokenID   uint64
	ExpiresAt time.Time
}
