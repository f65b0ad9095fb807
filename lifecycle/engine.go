package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/metrics"
	"github.com/ruteri/campuscred-backend/storage"
)

const (
	// DefaultOperationTimeout bounds a publish plus chain submission, including
	// the gateway's own confirmation wait.
	DefaultOperationTimeout = 3 * time.Minute

	DefaultIssuer        = "CampusCred"
	DefaultReviewer      = "Instructor"
	DefaultRejectReason  = "No reason provided"
	issueDateLayout      = "2006-01-02"
	revocationNoteLayout = "2006-01-02 15:04 MST"
)

// Options configures an Engine.
type Options struct {
	// Issuer is the issuing institution named in credential metadata.
	Issuer string

	// PublicBaseURL prefixes the external URL of credential metadata.
	PublicBaseURL string

	OperationTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine owns the claim state machine and drives its side effects.
type Engine struct {
	store     interfaces.ClaimStore
	evidence  interfaces.EvidenceStore
	publisher interfaces.MetadataPublisher
	chain     interfaces.ChainGateway
	opts      Options
	log       *slog.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// NewEngine wires an engine from its collaborators.
func NewEngine(store interfaces.ClaimStore, evidence interfaces.EvidenceStore, publisher interfaces.MetadataPublisher, chain interfaces.ChainGateway, opts Options, log *slog.Logger) *Engine {
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.PublicBaseURL = strings.TrimSuffix(opts.PublicBaseURL, "/")

	return &Engine{
		store:     store,
		evidence:  evidence,
		publisher: publisher,
		chain:     chain,
		opts:      opts,
		log:       log,
		inflight:  make(map[int64]struct{}),
	}
}

// EvidenceUpload is an uploaded evidence file.
type EvidenceUpload struct {
	FileName string
	Data     []byte
}

// SubmitRequest carries the submitter fields of a new claim.
type SubmitRequest struct {
	StudentName    string
	StudentEmail   string
	WalletAddress  string
	CredentialType string
	CourseCode     string
	CourseName     string
	Description    string
	Evidence       *EvidenceUpload
}

// ApproveResult reports an approval. MintErr is set when the claim was
// approved but minting failed; the claim then stays approved and can be
// retried.
type ApproveResult struct {
	Claim   *interfaces.Claim
	Minted  bool
	MintErr error
}

func (e *Engine) now() time.Time {
	return e.opts.Now().UTC()
}

func (e *Engine) observe(action Action, err error) {
	metrics.ClaimTransitions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
}

// Submit validates and persists a new pending claim. Evidence problems after
// the claim is persisted are logged and leave the claim without evidence.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*interfaces.Claim, error) {
	claim, err := e.buildClaim(req)
	if err != nil {
		return nil, err
	}

	created, err := e.store.Create(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}
	metrics.ClaimsSubmitted.Inc()
	e.log.Info("Claim submitted",
		slog.Int64("claimID", created.ID),
		slog.String("credentialType", string(created.CredentialType)),
		slog.Bool("hasWallet", created.HasWallet()))

	if req.Evidence != nil && req.Evidence.FileName != "" {
		if ref, ok := e.attachEvidence(ctx, created.ID, req.Evidence); ok {
			created.Evidence = ref
		}
	}
	return created, nil
}

func (e *Engine) buildClaim(req SubmitRequest) (*interfaces.Claim, error) {
	name := strings.TrimSpace(req.StudentName)
	email := strings.TrimSpace(req.StudentEmail)
	courseCode := strings.TrimSpace(req.CourseCode)
	courseName := strings.TrimSpace(req.CourseName)
	description := strings.TrimSpace(req.Description)

	if name == "" || email == "" || strings.TrimSpace(req.CredentialType) == "" || courseCode == "" {
		return nil, fmt.Errorf("%w: please fill in all required fields", interfaces.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: please enter a valid email address", interfaces.ErrValidation)
	}
	credType, err := interfaces.ParseCredentialType(req.CredentialType)
	if err != nil {
		return nil, err
	}

	var wallet interfaces.WalletAddress
	if strings.TrimSpace(req.WalletAddress) != "" {
		wallet, err = interfaces.ParseWalletAddress(req.WalletAddress)
		if err != nil {
			return nil, err
		}
	}

	if courseName != "" {
		description = fmt.Sprintf("%s: %s", courseName, description)
	}

	return &interfaces.Claim{
		StudentName:    name,
		StudentEmail:   email,
		WalletAddress:  wallet,
		CredentialType: credType,
		CourseCode:     strings.ToUpper(courseCode),
		Description:    description,
		Status:         interfaces.StatusPending,
	}, nil
}

func (e *Engine) attachEvidence(ctx context.Context, claimID int64, upload *EvidenceUpload) (*interfaces.EvidenceRef, bool) {
	log := e.log.With(slog.Int64("claimID", claimID))

	if !storage.AllowedEvidenceFile(upload.FileName) {
		log.Warn("Evidence file type not allowed, ignoring upload",
			slog.String("extension", storage.FileExtension(upload.FileName)))
		return nil, false
	}
	if e.evidence == nil {
		log.Warn("No evidence store configured, ignoring upload")
		return nil, false
	}

	ref := interfaces.EvidenceRef{
		Key:      storage.EvidenceKey(claimID, upload.FileName, e.now()),
		FileName: storage.SanitizeFilename(upload.FileName),
		Hash:     interfaces.HashEvidence(upload.Data),
	}
	if ref.FileName == "" {
		ref.FileName = ref.Key
	}

	if err := e.evidence.Put(ctx, ref.Key, upload.Data); err != nil {
		log.Error("Failed to store evidence, claim kept without evidence",
			slog.String("store", e.evidence.Name()), "err", err)
		return nil, false
	}

	if err := e.store.AttachEvidence(ctx, claimID, ref); err != nil {
		log.Error("Failed to record evidence reference, removing blob", "err", err)
		if derr := e.evidence.Delete(ctx, ref.Key); derr != nil {
			log.Error("Failed to remove orphaned evidence blob", slog.String("key", ref.Key), "err", derr)
		}
		return nil, false
	}

	log.Info("Evidence stored", slog.String("key", ref.Key), slog.String("hash", ref.Hash))
	return &ref, true
}

// Get returns a claim by id.
func (e *Engine) Get(ctx context.Context, id int64) (*interfaces.Claim, error) {
	return e.store.Get(ctx, id)
}

// List returns claims matching filter.
func (e *Engine) List(ctx context.Context, filter interfaces.ClaimFilter) ([]*interfaces.Claim, error) {
	return e.store.List(ctx, filter)
}

// Stats summarizes claims relative to the engine clock.
func (e *Engine) Stats(ctx context.Context) (interfaces.ClaimStats, error) {
	return e.store.Stats(ctx, e.now())
}

// Approve moves a pending claim to approved and, when the claim carries a
// wallet address, attempts to mint it. A mint failure is reported in the
// result and leaves the claim approved.
func (e *Engine) Approve(ctx context.Context, id int64, reviewer string) (*ApproveResult, error) {
	if reviewer == "" {
		reviewer = DefaultReviewer
	}

	approved, err := e.store.Transition(ctx, id, interfaces.StatusPending, string(ActionApprove), func(c *interfaces.Claim) error {
		next, err := check(c.Status, ActionApprove)
		if err != nil {
			return err
		}
		now := e.now()
		c.Status = next
		c.ApprovedAt = &now
		c.ReviewedBy = reviewer
		return nil
	})
	e.observe(ActionApprove, err)
	if err != nil {
		return nil, err
	}
	e.log.Info("Claim approved", slog.Int64("claimID", id))

	result := &ApproveResult{Claim: approved}
	if !approved.HasWallet() {
		return result, nil
	}

	minted, err := e.mint(ctx, id)
	var conflict *interfaces.ConflictError
	if errors.As(err, &conflict) && conflict.Current == interfaces.StatusMinted {
		// A concurrent retry finished the mint first.
		if current, getErr := e.store.Get(ctx, id); getErr == nil {
			result.Claim = current
			result.Minted = true
			return result, nil
		}
	}
	if err != nil {
		result.MintErr = err
		return result, nil
	}
	result.Claim = minted
	result.Minted = true
	return result, nil
}

// RetryMint mints an approved claim whose earlier mint failed.
func (e *Engine) RetryMint(ctx context.Context, id int64) (*interfaces.Claim, error) {
	return e.mint(ctx, id)
}

// mint publishes metadata and mints the token of an approved claim, then
// records the chain artifacts. The claim is read and checked only after the
// in-flight guard is taken, so overlapping callers never submit twice. Any
// failure leaves the claim approved.
func (e *Engine) mint(ctx context.Context, id int64) (minted *interfaces.Claim, err error) {
	defer func() { e.observe(ActionMint, err) }()

	release, err := e.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	claim, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := check(claim.Status, ActionMint); err != nil {
		return nil, &interfaces.ConflictError{
			Current: claim.Status,
			Action:  string(ActionMint),
			Reason:  fmt.Sprintf("can only retry minting for approved claims, claim is %s", claim.Status),
		}
	}
	if !claim.HasWallet() {
		return nil, &interfaces.ConflictError{
			Current: claim.Status,
			Action:  string(ActionMint),
			Reason:  "claim has no wallet address to mint to",
		}
	}

	log := e.log.With(slog.Int64("claimID", claim.ID))

	// Chain work outlives the caller's request.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.OperationTimeout)
	defer cancel()

	issueDate := e.now()
	doc := e.credentialMetadata(claim, issueDate)

	start := time.Now()
	uri, err := e.publisher.Publish(opCtx, doc)
	metrics.ObserveSince(metrics.MetadataPublishDuration.WithLabelValues(e.publisher.Name(), metrics.Outcome(err)), start)
	if err != nil {
		log.Error("Metadata publish failed", slog.String("publisher", e.publisher.Name()), "err", err)
		return nil, fmt.Errorf("failed to publish metadata: %w", err)
	}
	log.Info("Metadata published", slog.String("uri", uri), slog.Duration("duration", time.Since(start)))

	start = time.Now()
	res, err := e.chain.Mint(opCtx, claim.WalletAddress, uri)
	if err != nil {
		log.Error("Mint failed, claim stays approved", slog.Duration("duration", time.Since(start)), "err", err)
		return nil, fmt.Errorf("failed to mint credential: %w", err)
	}
	if res.TokenID == 0 {
		log.Warn("Minted token id unknown, claim requires reconciliation", slog.String("txHash", res.TxHash))
	}

	minted, err = e.store.Transition(opCtx, claim.ID, interfaces.StatusApproved, string(ActionMint), func(c *interfaces.Claim) error {
		next, err := check(c.Status, ActionMint)
		if err != nil {
			return err
		}
		now := e.now()
		tokenID := res.TokenID
		c.Status = next
		c.TokenID = &tokenID
		c.TxHash = res.TxHash
		c.MetadataURI = uri
		c.MintedAt = &now
		return nil
	})
	if err != nil {
		// The token exists on chain but the record could not be updated.
		log.Error("Failed to record minted token",
			slog.Uint64("tokenID", res.TokenID),
			slog.String("txHash", res.TxHash),
			slog.String("metadataURI", uri),
			"err", err)
		return nil, fmt.Errorf("minted token %d in tx %s but failed to record it: %w", res.TokenID, res.TxHash, err)
	}

	log.Info("Claim minted",
		slog.Uint64("tokenID", res.TokenID),
		slog.String("txHash", res.TxHash),
		slog.Duration("duration", time.Since(start)))
	return minted, nil
}

// Reject denies a pending claim. An empty reason is replaced by a default.
func (e *Engine) Reject(ctx context.Context, id int64, reason, reviewer string) (*interfaces.Claim, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRejectReason
	}
	if reviewer == "" {
		reviewer = DefaultReviewer
	}

	denied, err := e.store.Transition(ctx, id, interfaces.StatusPending, string(ActionReject), func(c *interfaces.Claim) error {
		next, err := check(c.Status, ActionReject)
		if err != nil {
			return err
		}
		c.Status = next
		c.InstructorNotes = strings.TrimSpace(reason)
		c.ReviewedBy = reviewer
		return nil
	})
	e.observe(ActionReject, err)
	if err != nil {
		return nil, err
	}
	e.log.Info("Claim rejected", slog.Int64("claimID", id))
	return denied, nil
}

// RevokeResult reports a revocation and its transaction.
type RevokeResult struct {
	Claim  *interfaces.Claim
	TxHash string
}

// Revoke revokes the token of a minted claim on chain and marks the claim
// revoked. On chain failure the claim stays minted.
func (e *Engine) Revoke(ctx context.Context, id int64, reason, reviewer string) (result *RevokeResult, err error) {
	defer func() { e.observe(ActionRevoke, err) }()

	if reviewer == "" {
		reviewer = DefaultReviewer
	}

	release, err := e.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	claim, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := check(claim.Status, ActionRevoke); err != nil {
		return nil, err
	}
	if !claim.HasToken() || claim.NeedsReconciliation() {
		return nil, &interfaces.ConflictError{
			Current: claim.Status,
			Action:  string(ActionRevoke),
			Reason:  "claim has no known token id to revoke",
		}
	}
	tokenID := *claim.TokenID

	log := e.log.With(slog.Int64("claimID", id), slog.Uint64("tokenID", tokenID))

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.OperationTimeout)
	defer cancel()

	start := time.Now()
	txHash, err := e.chain.Revoke(opCtx, tokenID)
	if err != nil {
		log.Error("Revoke failed, claim stays minted", slog.Duration("duration", time.Since(start)), "err", err)
		return nil, fmt.Errorf("failed to revoke credential: %w", err)
	}

	revoked, err := e.store.Transition(opCtx, id, interfaces.StatusMinted, string(ActionRevoke), func(c *interfaces.Claim) error {
		next, err := check(c.Status, ActionRevoke)
		if err != nil {
			return err
		}
		c.Status = next
		c.InstructorNotes = appendNote(c.InstructorNotes, revocationNote(e.now(), reviewer, reason, txHash))
		return nil
	})
	if err != nil {
		log.Error("Failed to record revocation", slog.String("txHash", txHash), "err", err)
		return nil, fmt.Errorf("revoked token %d in tx %s but failed to record it: %w", tokenID, txHash, err)
	}

	log.Info("Claim revoked", slog.String("txHash", txHash), slog.Duration("duration", time.Since(start)))
	return &RevokeResult{Claim: revoked, TxHash: txHash}, nil
}

func revocationNote(at time.Time, reviewer, reason, txHash string) string {
	note := fmt.Sprintf("[Revoked %s by %s, tx %s]", at.Format(revocationNoteLayout), reviewer, txHash)
	if reason = strings.TrimSpace(reason); reason != "" {
		note += " " + reason
	}
	return note
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}

// ReconcileToken records the real token id of a minted claim whose id could
// not be extracted from the mint receipt. The token must exist on chain and
// be owned by the claim's wallet.
func (e *Engine) ReconcileToken(ctx context.Context, id int64, tokenID uint64, reviewer string) (reconciled *interfaces.Claim, err error) {
	defer func() { e.observe(ActionReconcile, err) }()

	if tokenID == 0 {
		return nil, fmt.Errorf("%w: token id must be positive", interfaces.ErrValidation)
	}
	if reviewer == "" {
		reviewer = DefaultReviewer
	}

	claim, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := check(claim.Status, ActionReconcile); err != nil {
		return nil, err
	}
	if !claim.NeedsReconciliation() {
		return nil, &interfaces.ConflictError{
			Current: claim.Status,
			Action:  string(ActionReconcile),
			Reason:  "claim token id is already recorded",
		}
	}

	if other, err := e.store.FindByToken(ctx, tokenID); err == nil && other.ID != id {
		return nil, fmt.Errorf("%w: token %d already belongs to claim %d", interfaces.ErrValidation, tokenID, other.ID)
	} else if err != nil && !errors.Is(err, interfaces.ErrClaimNotFound) {
		return nil, err
	}

	onchain := e.chain.Verify(ctx, tokenID)
	if !onchain.Exists {
		return nil, fmt.Errorf("%w: token %d not found on chain: %s", interfaces.ErrValidation, tokenID, onchain.Error)
	}
	if !claim.WalletAddress.Equal(onchain.Owner) {
		return nil, fmt.Errorf("%w: token %d is not owned by the claim wallet", interfaces.ErrValidation, tokenID)
	}

	reconciled, err = e.store.Transition(ctx, id, interfaces.StatusMinted, string(ActionReconcile), func(c *interfaces.Claim) error {
		if _, err := check(c.Status, ActionReconcile); err != nil {
			return err
		}
		if !c.NeedsReconciliation() {
			return &interfaces.ConflictError{Current: c.Status, Action: string(ActionReconcile), Reason: "claim token id is already recorded"}
		}
		recorded := tokenID
		c.TokenID = &recorded
		if onchain.URI != "" && c.MetadataURI == "" {
			c.MetadataURI = onchain.URI
		}
		c.InstructorNotes = appendNote(c.InstructorNotes,
			fmt.Sprintf("[Token id %d reconciled %s by %s]", tokenID, e.now().Format(revocationNoteLayout), reviewer))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Token id reconciled", slog.Int64("claimID", id), slog.Uint64("tokenID", tokenID))
	return reconciled, nil
}

// acquire marks chain work outstanding for a claim. The returned func
// releases it.
func (e *Engine) acquire(id int64) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inflight[id]; busy {
		return nil, interfaces.ErrMintInProgress
	}
	e.inflight[id] = struct{}{}
	return func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
	}, nil
}

var credentialTitles = map[interfaces.CredentialType]string{
	interfaces.CredentialMicro:   "Micro-Credential",
	interfaces.CredentialCourse:  "Course Completion",
	interfaces.CredentialDiploma: "Diploma",
}

func (e *Engine) credentialMetadata(c *interfaces.Claim, issued time.Time) interfaces.CredentialMetadata {
	title := credentialTitles[c.CredentialType]
	if title == "" {
		title = string(c.CredentialType)
	}

	doc := interfaces.CredentialMetadata{
		Name:        fmt.Sprintf("%s: %s", title, c.CourseCode),
		Description: c.Description,
		ExternalURL: e.opts.PublicBaseURL + "/verify",
		CourseCode:  c.CourseCode,
		Credential:  c.CredentialType,
		Issuer:      e.opts.Issuer,
		Recipient:   c.StudentName,
		IssueDate:   issued.Format(issueDateLayout),
		Attributes: []interfaces.CredentialAttribute{
			{TraitType: "Course Code", Value: c.CourseCode},
			{TraitType: "Credential Type", Value: title},
			{TraitType: "Issuer", Value: e.opts.Issuer},
			{TraitType: "Issue Date", Value: issued.Format(issueDateLayout)},
		},
	}
	if c.Evidence != nil {
		doc.EvidenceHash = c.Evidence.Hash
	}
	return doc
}
