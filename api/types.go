package api

import (
	"github.com/ruteri/campuscred-backend/disclosure"
	"github.com/ruteri/campuscred-backend/interfaces"
)

// SessionCookieName is the cookie carrying the wallet session token.
const SessionCookieName = "campuscred_session"

// Portal locations returned after connecting a wallet.
const (
	InstructorPortalPath = "/instructor/dashboard"
	StudentPortalPath    = "/student/portal"
)

// ErrorResponse is the body of every failed JSON request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SuccessResponse acknowledges an operation without further data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ConnectWalletRequest struct {
	Address string `json:"address"`
}

type ConnectWalletResponse struct {
	Success      bool   `json:"success"`
	Address      string `json:"address"`
	IsInstructor bool   `json:"is_instructor"`
	Redirect     string `json:"redirect"`
}

type SessionResponse struct {
	Connected    bool   `json:"connected"`
	Address      string `json:"address,omitempty"`
	IsInstructor bool   `json:"is_instructor"`
}

// SubmitClaimResponse is returned to JSON clients of the submission form.
// Browser form posts are redirected to the portal with a flash message instead.
type SubmitClaimResponse struct {
	Success  bool   `json:"success"`
	ClaimID  int64  `json:"claim_id,omitempty"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// ClaimSummary is a claim row in portal and dashboard listings.
type ClaimSummary struct {
	ID             int64                     `json:"id"`
	StudentName    string                    `json:"student_name,omitempty"`
	CredentialType interfaces.CredentialType `json:"credential_type"`
	CourseCode     string                    `json:"course_code"`
	Description    string                    `json:"description,omitempty"`
	Status         interfaces.ClaimStatus    `json:"status"`
	WalletAddress  string                    `json:"student_address,omitempty"`
	TokenID        *uint64                   `json:"token_id,omitempty"`
	TxHash         string                    `json:"tx_hash,omitempty"`
	SubmittedAt    string                    `json:"submitted_at"`
}

// ClaimDetail is the instructor view of a single claim.
type ClaimDetail struct {
	ID              int64                     `json:"id"`
	StudentName     string                    `json:"student_name"`
	StudentEmail    string                    `json:"student_email"`
	StudentAddress  string                    `json:"student_address"`
	CredentialType  interfaces.CredentialType `json:"credential_type"`
	CourseCode      string                    `json:"course_code"`
	CourseName      string                    `json:"course_name"`
	Description     string                    `json:"description"`
	EvidenceFile    string                    `json:"evidence_file,omitempty"`
	EvidenceHash    string                    `json:"evidence_hash,omitempty"`
	Status          interfaces.ClaimStatus    `json:"status"`
	SubmittedAt     string                    `json:"submitted_at"`
	ReviewedBy      string                    `json:"approved_by,omitempty"`
	InstructorNotes string                    `json:"instructor_notes,omitempty"`
	TokenID         *uint64                   `json:"token_id,omitempty"`
	TxHash          string                    `json:"tx_hash,omitempty"`
	MetadataURI     string                    `json:"metadata_uri,omitempty"`
}

type StudentClaimsResponse struct {
	Wallet string         `json:"wallet,omitempty"`
	Claims []ClaimSummary `json:"claims"`
	Flash  *Flash         `json:"flash,omitempty"`
}

// Flash is a one-shot message shown on the next portal render.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type DashboardResponse struct {
	PendingClaims  []ClaimSummary        `json:"pending_claims"`
	ApprovedClaims []ClaimSummary        `json:"approved_claims"`
	MintedClaims   []ClaimSummary        `json:"minted_claims"`
	Stats          interfaces.ClaimStats `json:"stats"`
}

// ApproveResponse reports an approval. MintingError is set when the claim
// was approved but could not be minted.
type ApproveResponse struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message,omitempty"`
	Status       interfaces.ClaimStatus `json:"status"`
	TokenID      *uint64                `json:"token_id,omitempty"`
	TxHash       string                 `json:"tx_hash,omitempty"`
	MintingError string                 `json:"minting_error,omitempty"`
}

// ReasonRequest is the optional body of reject and revoke.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type MintResponse struct {
	Success bool    `json:"success"`
	TokenID *uint64 `json:"token_id"`
	TxHash  string  `json:"tx_hash"`
}

type RevokeResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
}

type ReconcileRequest struct {
	TokenID uint64 `json:"token_id"`
}

type VerifierLinkRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type VerifierLinkResponse struct {
	Success     bool   `json:"success"`
	VerifierURL string `json:"verifier_url"`
	ExpiresIn   int    `json:"expires_in"`
}

// CredentialResponse carries the public view, or an error state that is
// still served with status 200.
type CredentialResponse struct {
	Success    bool                   `json:"success"`
	Credential *disclosure.PublicView `json:"credential,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type PrivateCredentialResponse struct {
	Success    bool                    `json:"success"`
	Credential *disclosure.PrivateView `json:"credential,omitempty"`
	Error      string                  `json:"error,omitempty"`
}
