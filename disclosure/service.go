package disclosure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ruteri/campuscred-backend/docsign"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/metadata"
	"github.com/ruteri/campuscred-backend/metrics"
)

const (
	// DefaultLinkTTL is the absolute lifetime of a verifier link.
	DefaultLinkTTL = 15 * time.Minute

	EvidenceMimeType = "application/pdf"
	issueDateLayout  = "2006-01-02"
)

// DocumentSigner attaches authenticity metadata to evidence.
type DocumentSigner interface {
	Sign(content []byte, meta docsign.Metadata) ([]byte, error)
}

// PublicView holds the non-personal fields of a minted credential.
type PublicView struct {
	TokenID            uint64                    `json:"token_id"`
	CourseCode         string                    `json:"course_code"`
	CredentialType     interfaces.CredentialType `json:"credential_type"`
	Description        string                    `json:"description"`
	IssueDate          string                    `json:"issue_date"`
	Owner              string                    `json:"owner"`
	Revoked            bool                      `json:"is_revoked"`
	TxHash             string                    `json:"tx_hash"`
	MetadataURI        string                    `json:"metadata_uri"`
	MetadataGatewayURL string                    `json:"metadata_gateway_url"`
	EvidenceHash       string                    `json:"evidence_hash,omitempty"`
	OnchainVerified    bool                      `json:"onchain_verified"`
	OnchainError       string                    `json:"onchain_error,omitempty"`
}

// PrivateView extends the public view with the personal data of the claim.
type PrivateView struct {
	PublicView
	StudentName      string `json:"student_name"`
	StudentEmail     string `json:"student_email"`
	EvidenceFileName string `json:"evidence_file_name,omitempty"`
	ExpiresIn        int    `json:"expires_in"`
}

// EvidenceDownload is a signed evidence document.
type EvidenceDownload struct {
	FileName string
	MimeType string
	Content  []byte
}

// Options configures a Service.
type Options struct {
	LinkTTL time.Duration
	Now     Clock
}

// Service implements public verification and personal data disclosure.
type Service struct {
	claims   interfaces.ClaimStore
	chain    interfaces.ChainGateway
	evidence interfaces.EvidenceStore
	signer   DocumentSigner
	links    *LinkStore
	ttl      time.Duration
	now      Clock
	log      *slog.Logger
}

func NewService(claims interfaces.ClaimStore, chain interfaces.ChainGateway, evidence interfaces.EvidenceStore, signer DocumentSigner, opts Options, log *slog.Logger) *Service {
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = DefaultLinkTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		claims:   claims,
		chain:    chain,
		evidence: evidence,
		signer:   signer,
		links:    NewLinkStore(opts.Now),
		ttl:      opts.LinkTTL,
		now:      opts.Now,
		log:      log,
	}
}

// Links exposes the link table for periodic sweeping.
func (s *Service) Links() *LinkStore {
	return s.links
}

// mintedClaim returns the minted claim holding tokenID.
func (s *Service) mintedClaim(ctx context.Context, tokenID uint64) (*interfaces.Claim, error) {
	claim, err := s.claims.FindByToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if claim.Status != interfaces.StatusMinted {
		return nil, interfaces.ErrClaimNotFound
	}
	return claim, nil
}

// PublicView composes the public view of a minted credential. A failed chain
// read degrades to local data with OnchainVerified unset.
func (s *Service) PublicView(ctx context.Context, tokenID uint64) (*PublicView, error) {
	claim, err := s.mintedClaim(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	view := s.compose(ctx, claim)
	return &view, nil
}

func (s *Service) compose(ctx context.Context, claim *interfaces.Claim) PublicView {
	view := PublicView{
		CourseCode:         claim.CourseCode,
		CredentialType:     claim.CredentialType,
		Description:        claim.Description,
		Owner:              claim.WalletAddress.String(),
		Revoked:            claim.Status == interfaces.StatusRevoked,
		TxHash:             claim.TxHash,
		MetadataURI:        claim.MetadataURI,
		MetadataGatewayURL: metadata.GatewayURL(claim.MetadataURI),
	}
	if claim.TokenID != nil {
		view.TokenID = *claim.TokenID
	}
	switch {
	case claim.MintedAt != nil:
		view.IssueDate = claim.MintedAt.UTC().Format(issueDateLayout)
	case claim.ApprovedAt != nil:
		view.IssueDate = claim.ApprovedAt.UTC().Format(issueDateLayout)
	}
	if claim.Evidence != nil {
		view.EvidenceHash = claim.Evidence.Hash
	}

	if s.chain == nil || claim.TokenID == nil {
		view.OnchainError = "on-chain verification unavailable"
		return view
	}

	onchain := s.chain.Verify(ctx, view.TokenID)
	if !onchain.Exists {
		s.log.Warn("On-chain verification unavailable, using local record",
			slog.Uint64("tokenID", view.TokenID),
			slog.String("detail", onchain.Error))
		view.OnchainError = "on-chain verification unavailable"
		return view
	}

	view.OnchainVerified = true
	view.Owner = onchain.Owner
	view.Revoked = view.Revoked || onchain.Revoked
	return view
}

// CreateVerifierLink issues a link disclosing the personal data of the
// credential. Only the wallet recorded on the claim may request it.
func (s *Service) CreateVerifierLink(ctx context.Context, tokenID uint64, requester string) (interfaces.VerifierLink, error) {
	claim, err := s.mintedClaim(ctx, tokenID)
	if err != nil {
		return interfaces.VerifierLink{}, err
	}
	if !claim.WalletAddress.Equal(requester) {
		metrics.VerifierLinks.WithLabelValues("denied").Inc()
		return interfaces.VerifierLink{}, fmt.Errorf("%w: only credential owner can generate verifier links", interfaces.ErrForbidden)
	}

	token, err := newToken()
	if err != nil {
		return interfaces.VerifierLink{}, err
	}
	link := interfaces.VerifierLink{
		Token:     token,
		ClaimID:   claim.ID,
		TokenID:   tokenID,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if removed := s.links.Sweep(); removed > 0 {
		s.log.Debug("Swept expired verifier links", slog.Int("removed", removed))
	}
	s.links.Put(link)

	metrics.VerifierLinks.WithLabelValues("issued").Inc()
	s.log.Info("Verifier link issued",
		slog.Int64("claimID", claim.ID),
		slog.Uint64("tokenID", tokenID),
		slog.Time("expiresAt", link.ExpiresAt))
	return link, nil
}

// ExpiresIn returns the whole seconds left before link expires.
func (s *Service) ExpiresIn(link interfaces.VerifierLink) int {
	remaining := link.ExpiresAt.Sub(s.now()).Seconds()
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining))
}

// PrivateView redeems a verifier link. The link stays valid until it expires.
func (s *Service) PrivateView(ctx context.Context, token string) (*PrivateView, error) {
	link, claim, err := s.redeem(ctx, token)
	if err != nil {
		return nil, err
	}

	view := &PrivateView{
		PublicView:   s.compose(ctx, claim),
		StudentName:  claim.StudentName,
		StudentEmail: claim.StudentEmail,
		ExpiresIn:    s.ExpiresIn(link),
	}
	if claim.Evidence != nil {
		view.EvidenceFileName = claim.Evidence.FileName
	}

	metrics.VerifierLinks.WithLabelValues("redeemed").Inc()
	return view, nil
}

func (s *Service) redeem(ctx context.Context, token string) (interfaces.VerifierLink, *interfaces.Claim, error) {
	link, err := s.links.Get(token)
	if err != nil {
		metrics.VerifierLinks.WithLabelValues("invalid").Inc()
		return interfaces.VerifierLink{}, nil, err
	}
	claim, err := s.claims.Get(ctx, link.ClaimID)
	if err != nil {
		return interfaces.VerifierLink{}, nil, err
	}
	return link, claim, nil
}

// DownloadEvidence returns the signed evidence of the claim behind a verifier
// link. An invalid or expired link is forbidden.
func (s *Service) DownloadEvidence(ctx context.Context, token string) (*EvidenceDownload, error) {
	link, claim, err := s.redeem(ctx, token)
	if err != nil {
		if errors.Is(err, interfaces.ErrLinkInvalid) {
			return nil, fmt.Errorf("%w: %w", interfaces.ErrForbidden, err)
		}
		return nil, err
	}
	if claim.Evidence == nil {
		return nil, interfaces.ErrEvidenceNotFound
	}
	if s.evidence == nil || s.signer == nil {
		return nil, fmt.Errorf("%w: evidence download", interfaces.ErrNotConfigured)
	}

	content, err := s.evidence.Get(ctx, claim.Evidence.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to load evidence: %w", err)
	}

	signed, err := s.signer.Sign(content, docsign.Metadata{
		Title:   fmt.Sprintf("Evidence for Credential #%d", link.TokenID),
		Subject: fmt.Sprintf("Academic Credential Evidence - %s", claim.CourseCode),
	})
	if err != nil {
		return nil, err
	}

	metrics.VerifierLinks.WithLabelValues("download").Inc()
	s.log.Info("Signed evidence released",
		slog.Int64("claimID", claim.ID),
		slog.Uint64("tokenID", link.TokenID))
	return &EvidenceDownload{
		FileName: "signed_" + claim.Evidence.FileName,
		MimeType: EvidenceMimeType,
		Content:  signed,
	}, nil
}
