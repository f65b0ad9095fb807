package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/campuscred-backend/chain"
	"github.com/ruteri/campuscred-backend/claims"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/metadata"
	"github.com/ruteri/campuscred-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const aliceWallet = "0xABC0000000000000000000000000000000000001"

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type testEnv struct {
	engine   *Engine
	store    *claims.MemoryStore
	evidence interfaces.EvidenceStore
	chain    *chain.MockGateway
}

func newTestEnv(t *testing.T, publisher interfaces.MetadataPublisher) *testEnv {
	t.Helper()

	evidence, err := storage.NewFileEvidenceStore(t.TempDir(), slog.Default())
	require.NoError(t, err)
	return newTestEnvWithEvidence(t, publisher, evidence)
}

func newTestEnvWithEvidence(t *testing.T, publisher interfaces.MetadataPublisher, evidence interfaces.EvidenceStore) *testEnv {
	t.Helper()

	if publisher == nil {
		publisher = metadata.NewMockPublisher(slog.Default())
	}
	store := claims.NewMemoryStore().WithClock(func() time.Time { return testNow })
	gw := new(chain.MockGateway)

	engine := NewEngine(store, evidence, publisher, gw, Options{
		PublicBaseURL: "https://campuscred.example/",
		Now:           func() time.Time { return testNow },
	}, slog.Default())

	return &testEnv{engine: engine, store: store, evidence: evidence, chain: gw}
}

func aliceRequest(wallet string) SubmitRequest {
	return SubmitRequest{
		StudentName:    "Alice",
		StudentEmail:   "alice@x.com",
		WalletAddress:  wallet,
		CredentialType: "micro-credential",
		CourseCode:     "02369",
	}
}

func (env *testEnv) submit(t *testing.T, wallet string) *interfaces.Claim {
	t.Helper()
	claim, err := env.engine.Submit(context.Background(), aliceRequest(wallet))
	require.NoError(t, err)
	return claim
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := map[string]func(r *SubmitRequest){
		"missing name":        func(r *SubmitRequest) { r.StudentName = "  " },
		"missing email":       func(r *SubmitRequest) { r.StudentEmail = "" },
		"email without at":    func(r *SubmitRequest) { r.StudentEmail = "alice.x.com" },
		"missing course code": func(r *SubmitRequest) { r.CourseCode = "" },
		"missing type":        func(r *SubmitRequest) { r.CredentialType = "" },
		"unknown type":        func(r *SubmitRequest) { r.CredentialType = "badge" },
		"bad wallet":          func(r *SubmitRequest) { r.WalletAddress = "0x123" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := aliceRequest("")
			mutate(&req)
			_, err := env.engine.Submit(ctx, req)
			assert.ErrorIs(t, err, interfaces.ErrValidation)
		})
	}

	// Nothing persisted on validation failure
	all, err := env.store.List(ctx, interfaces.ClaimFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmit_Normalization(t *testing.T) {
	env := newTestEnv(t, nil)

	req := aliceRequest(aliceWallet)
	req.CredentialType = "course"
	req.CourseCode = "02369abc"
	req.CourseName = "Software Engineering"
	req.Description = "Final project"

	claim, err := env.engine.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPending, claim.Status)
	assert.Equal(t, interfaces.CredentialCourse, claim.CredentialType)
	assert.Equal(t, "02369ABC", claim.CourseCode)
	assert.Equal(t, "Software Engineering: Final project", claim.Description)
	assert.Equal(t, "Software Engineering", claim.CourseName())
	assert.Equal(t, interfaces.WalletAddress("0xabc0000000000000000000000000000000000001"), claim.WalletAddress)
}

func TestSubmit_Evidence(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	req := aliceRequest("")
	req.Evidence = &EvidenceUpload{FileName: "my transcript.pdf", Data: []byte("%PDF-1.4 evidence")}

	claim, err := env.engine.Submit(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, claim.Evidence)
	assert.Equal(t, "claim_1_20250314_092653.pdf", claim.Evidence.Key)
	assert.Equal(t, "my_transcript.pdf", claim.Evidence.FileName)
	assert.Equal(t, interfaces.HashEvidence([]byte("%PDF-1.4 evidence")), claim.Evidence.Hash)
	assert.Len(t, claim.Evidence.Hash, 64)

	stored, err := env.evidence.Get(ctx, claim.Evidence.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 evidence"), stored)

	persisted, err := env.store.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.Evidence, persisted.Evidence)
}

func TestSubmit_DisallowedEvidenceIgnored(t *testing.T) {
	env := newTestEnv(t, nil)

	req := aliceRequest("")
	req.Evidence = &EvidenceUpload{FileName: "payload.exe", Data: []byte("MZ")}

	claim, err := env.engine.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPending, claim.Status)
	assert.Nil(t, claim.Evidence)
}

type failingEvidenceStore struct {
	putErr  error
	deleted []string
}

func (f *failingEvidenceStore) Put(ctx context.Context, key string, data []byte) error {
	return f.putErr
}

func (f *failingEvidenceStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, interfaces.ErrEvidenceNotFound
}

func (f *failingEvidenceStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *failingEvidenceStore) Name() string { return "failing" }

func TestSubmit_EvidenceStorageFailureTolerated(t *testing.T) {
	env := newTestEnvWithEvidence(t, nil, &failingEvidenceStore{putErr: errors.New("disk full")})

	req := aliceRequest("")
	req.Evidence = &EvidenceUpload{FileName: "transcript.pdf", Data: []byte("pdf")}

	claim, err := env.engine.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPending, claim.Status)
	assert.Nil(t, claim.Evidence)

	persisted, err := env.store.Get(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Nil(t, persisted.Evidence)
}

func TestApprove_WithoutWallet(t *testing.T) {
	env := newTestEnv(t, nil)
	claim := env.submit(t, "")

	result, err := env.engine.Approve(context.Background(), claim.ID, "")
	require.NoError(t, err)
	assert.False(t, result.Minted)
	assert.NoError(t, result.MintErr)
	assert.Equal(t, interfaces.StatusApproved, result.Claim.Status)
	assert.Equal(t, DefaultReviewer, result.Claim.ReviewedBy)
	require.NotNil(t, result.Claim.ApprovedAt)
	assert.Equal(t, testNow, *result.Claim.ApprovedAt)
	assert.Nil(t, result.Claim.TokenID)
	assert.Empty(t, result.Claim.TxHash)
	assert.Empty(t, result.Claim.MetadataURI)

	env.chain.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_Twice(t *testing.T) {
	env := newTestEnv(t, nil)
	claim := env.submit(t, "")

	_, err := env.engine.Approve(context.Background(), claim.ID, "")
	require.NoError(t, err)

	_, err = env.engine.Approve(context.Background(), claim.ID, "")
	var conflict *interfaces.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, interfaces.StatusApproved, conflict.Current)
	assert.Equal(t, "claim is already approved", err.Error())
}

func TestApprove_UnknownClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.engine.Approve(context.Background(), 99, "")
	assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)
}

func TestApprove_Mints(t *testing.T) {
	env := newTestEnv(t, nil)
	claim := env.submit(t, aliceWallet)

	wallet := interfaces.WalletAddress("0xabc0000000000000000000000000000000000001")
	env.chain.On("Mint", mock.Anything, wallet, mock.MatchedBy(func(uri string) bool {
		return len(uri) == len("ipfs://")+46
	})).Return(interfaces.MintResult{TokenID: 42, TxHash: "0xdead"}, nil).Once()

	result, err := env.engine.Approve(context.Background(), claim.ID, "Dr. Smith")
	require.NoError(t, err)
	assert.True(t, result.Minted)
	assert.NoError(t, result.MintErr)

	minted := result.Claim
	assert.Equal(t, interfaces.StatusMinted, minted.Status)
	require.NotNil(t, minted.TokenID)
	assert.Equal(t, uint64(42), *minted.TokenID)
	assert.Equal(t, "0xdead", minted.TxHash)
	assert.NotEmpty(t, minted.MetadataURI)
	assert.NotNil(t, minted.MintedAt)
	assert.Equal(t, "Dr. Smith", minted.ReviewedBy)

	env.chain.AssertExpectations(t)
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, doc interfaces.CredentialMetadata) (string, error) {
	return "", errors.New("failed to upload to IPFS: 401 Unauthorized")
}

func (failingPublisher) Name() string { return "failing" }

func TestApprove_PublishFailureLeavesApproved(t *testing.T) {
	env := newTestEnv(t, failingPublisher{})
	claim := env.submit(t, aliceWallet)

	result, err := env.engine.Approve(context.Background(), claim.ID, "")
	require.NoError(t, err)
	assert.False(t, result.Minted)
	assert.ErrorContains(t, result.MintErr, "401 Unauthorized")
	assert.Equal(t, interfaces.StatusApproved, result.Claim.Status)

	env.chain.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_MintFailureThenRetry(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	claim := env.submit(t, aliceWallet)

	env.chain.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{}, interfaces.ErrConfirmationTimeout).Once()

	result, err := env.engine.Approve(ctx, claim.ID, "")
	require.NoError(t, err)
	assert.False(t, result.Minted)
	assert.ErrorIs(t, result.MintErr, interfaces.ErrConfirmationTimeout)
	assert.Equal(t, interfaces.StatusApproved, result.Claim.Status)

	persisted, err := env.store.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusApproved, persisted.Status)
	assert.Nil(t, persisted.TokenID)

	// Retry fails again, claim still approved
	env.chain.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{}, errors.New("rpc unavailable")).Once()
	_, err = env.engine.RetryMint(ctx, claim.ID)
	assert.ErrorContains(t, err, "rpc unavailable")

	persisted, err = env.store.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusApproved, persisted.Status)

	// Retry succeeds
	env.chain.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{TokenID: 43, TxHash: "0xbeef"}, nil).Once()
	minted, err := env.engine.RetryMint(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusMinted, minted.Status)
	assert.Equal(t, uint64(43), *minted.TokenID)

	// Nothing left to retry
	_, err = env.engine.RetryMint(ctx, claim.ID)
	assert.True(t, interfaces.IsConflict(err))

	env.chain.AssertExpectations(t)
}

func TestRetryMint_Preconditions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pending := env.submit(t, aliceWallet)
	_, err := env.engine.RetryMint(ctx, pending.ID)
	var conflict *interfaces.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, interfaces.StatusPending, conflict.Current)

	noWallet := env.submit(t, "")
	_, err = env.engine.Approve(ctx, noWallet.ID, "")
	require.NoError(t, err)
	_, err = env.engine.RetryMint(ctx, noWallet.ID)
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Error(), "no wallet")

	persisted, err := env.store.Get(ctx, noWallet.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusApproved, persisted.Status)

	_, err = env.engine.RetryMint(ctx, 999)
	assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)
}

func TestReject(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim := env.submit(t, "")
	denied, err := env.engine.Reject(ctx, claim.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusDenied, denied.Status)
	assert.Equal(t, DefaultRejectReason, denied.InstructorNotes)
	assert.Equal(t, DefaultReviewer, denied.ReviewedBy)

	_, err = env.engine.Reject(ctx, claim.ID, "again", "")
	var conflict *interfaces.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, interfaces.StatusDenied, conflict.Current)

	// Denied claims cannot be approved
	_, err = env.engine.Approve(ctx, claim.ID, "")
	assert.True(t, interfaces.IsConflict(err))

	other := env.submit(t, "")
	denied, err = env.engine.Reject(ctx, other.ID, "Evidence unreadable", "Dr. Smith")
	require.NoError(t, err)
	assert.Equal(t, "Evidence unreadable", denied.InstructorNotes)
}

func (env *testEnv) mintedClaim(t *testing.T, tokenID uint64) *interfaces.Claim {
	t.Helper()
	claim := env.submit(t, aliceWallet)
	env.chain.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{TokenID: tokenID, TxHash: "0xdead"}, nil).Once()
	result, err := env.engine.Approve(context.Background(), claim.ID, "")
	require.NoError(t, err)
	require.True(t, result.Minted)
	return result.Claim
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	minted := env.mintedClaim(t, 42)

	env.chain.On("Revoke", mock.Anything, uint64(42)).Return("0xrevoke", nil).Once()

	res, err := env.engine.Revoke(ctx, minted.ID, "Academic misconduct", "")
	require.NoError(t, err)
	assert.Equal(t, "0xrevoke", res.TxHash)
	revoked := res.Claim
	assert.Equal(t, interfaces.StatusRevoked, revoked.Status)
	assert.Contains(t, revoked.InstructorNotes, "[Revoked 2025-03-14 09:26 UTC by Instructor, tx 0xrevoke] Academic misconduct")
	assert.Equal(t, uint64(42), *revoked.TokenID)

	_, err = env.engine.Revoke(ctx, minted.ID, "", "")
	var conflict *interfaces.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, interfaces.StatusRevoked, conflict.Current)

	env.chain.AssertNumberOfCalls(t, "Revoke", 1)
}

func TestRevoke_ChainFailureLeavesMinted(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	minted := env.mintedClaim(t, 42)

	env.chain.On("Revoke", mock.Anything, uint64(42)).Return("", interfaces.ErrTransactionFailed).Once()

	_, err := env.engine.Revoke(ctx, minted.ID, "", "")
	assert.ErrorIs(t, err, interfaces.ErrTransactionFailed)

	persisted, err := env.store.Get(ctx, minted.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusMinted, persisted.Status)
	assert.Empty(t, persisted.InstructorNotes)
}

func TestRevoke_Preconditions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pending := env.submit(t, aliceWallet)
	_, err := env.engine.Revoke(ctx, pending.ID, "", "")
	assert.True(t, interfaces.IsConflict(err))

	unknownToken := env.mintedClaim(t, 0)
	assert.True(t, unknownToken.NeedsReconciliation())
	_, err = env.engine.Revoke(ctx, unknownToken.ID, "", "")
	var conflict *interfaces.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Error(), "no known token id")

	env.chain.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}

func TestReconcileToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	claim := env.mintedClaim(t, 0)

	_, err := env.engine.ReconcileToken(ctx, claim.ID, 0, "")
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	env.chain.On("Verify", mock.Anything, uint64(5)).Return(interfaces.OnchainCredential{
		TokenID: 5, Exists: true, Owner: "0x9990000000000000000000000000000000000009",
	}).Once()
	_, err = env.engine.ReconcileToken(ctx, claim.ID, 5, "")
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	env.chain.On("Verify", mock.Anything, uint64(6)).Return(interfaces.OnchainCredential{
		TokenID: 6, Exists: false, Error: "execution reverted",
	}).Once()
	_, err = env.engine.ReconcileToken(ctx, claim.ID, 6, "")
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	env.chain.On("Verify", mock.Anything, uint64(7)).Return(interfaces.OnchainCredential{
		TokenID: 7, Exists: true, Owner: aliceWallet, URI: "ipfs://QmX",
	}).Once()
	reconciled, err := env.engine.ReconcileToken(ctx, claim.ID, 7, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *reconciled.TokenID)
	assert.False(t, reconciled.NeedsReconciliation())
	assert.Contains(t, reconciled.InstructorNotes, "Token id 7 reconciled")

	found, err := env.store.FindByToken(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, found.ID)

	_, err = env.engine.ReconcileToken(ctx, claim.ID, 8, "")
	assert.True(t, interfaces.IsConflict(err))
}

// blockingGateway holds Mint until released so concurrent operations can be
// observed while chain work is outstanding.
type blockingGateway struct {
	chain.MockGateway
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGateway) Mint(ctx context.Context, recipient interfaces.WalletAddress, uri string) (interfaces.MintResult, error) {
	close(b.entered)
	<-b.release
	return interfaces.MintResult{}, errors.New("node unavailable")
}

func TestRetryMint_InProgress(t *testing.T) {
	store := claims.NewMemoryStore()
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(store, nil, metadata.NewMockPublisher(slog.Default()), gw, Options{}, slog.Default())
	ctx := context.Background()

	claim, err := engine.Submit(ctx, aliceRequest(aliceWallet))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var approveResult *ApproveResult
	go func() {
		defer wg.Done()
		approveResult, _ = engine.Approve(ctx, claim.ID, "")
	}()

	<-gw.entered
	_, err = engine.RetryMint(ctx, claim.ID)
	assert.ErrorIs(t, err, interfaces.ErrMintInProgress)
	assert.True(t, interfaces.IsConflict(err))

	close(gw.release)
	wg.Wait()

	require.NotNil(t, approveResult)
	assert.ErrorContains(t, approveResult.MintErr, "node unavailable")
	assert.Equal(t, interfaces.StatusApproved, approveResult.Claim.Status)
}

// pausingStore blocks the first Get after it is armed until resumed, holding
// its caller between reading a claim and acting on it.
type pausingStore struct {
	*claims.MemoryStore
	armed  bool
	once   sync.Once
	paused chan struct{}
	resume chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		MemoryStore: claims.NewMemoryStore(),
		paused:      make(chan struct{}),
		resume:      make(chan struct{}),
	}
}

func (s *pausingStore) Get(ctx context.Context, id int64) (*interfaces.Claim, error) {
	claim, err := s.MemoryStore.Get(ctx, id)
	if s.armed {
		s.once.Do(func() {
			close(s.paused)
			<-s.resume
		})
	}
	return claim, err
}

// runOverlapping starts first in the background, waits until it has read the
// claim, runs second to completion, then lets first finish.
func runOverlapping(store *pausingStore, first, second func() error) (firstErr, secondErr error) {
	store.armed = true
	done := make(chan struct{})
	go func() {
		defer close(done)
		firstErr = first()
	}()
	<-store.paused
	secondErr = second()
	close(store.resume)
	<-done
	return firstErr, secondErr
}

func TestRetryMint_OverlappingCallsMintOnce(t *testing.T) {
	store := newPausingStore()
	gw := new(chain.MockGateway)
	engine := NewEngine(store, nil, metadata.NewMockPublisher(slog.Default()), gw, Options{}, slog.Default())
	ctx := context.Background()

	claim, err := engine.Submit(ctx, aliceRequest(aliceWallet))
	require.NoError(t, err)
	gw.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{}, errors.New("node unavailable")).Once()
	approved, err := engine.Approve(ctx, claim.ID, "")
	require.NoError(t, err)
	require.Error(t, approved.MintErr)

	gw.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{TokenID: 42, TxHash: "0xtx"}, nil)

	firstErr, secondErr := runOverlapping(store,
		func() error { _, err := engine.RetryMint(ctx, claim.ID); return err },
		func() error { _, err := engine.RetryMint(ctx, claim.ID); return err },
	)
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, interfaces.ErrMintInProgress)

	// One failed mint during approval plus exactly one successful retry
	gw.AssertNumberOfCalls(t, "Mint", 2)

	persisted, err := store.MemoryStore.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusMinted, persisted.Status)
	assert.Equal(t, uint64(42), *persisted.TokenID)

	// Once minted, a further retry is refused before any chain work
	_, err = engine.RetryMint(ctx, claim.ID)
	var conflict *interfaces.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, interfaces.StatusMinted, conflict.Current)
	gw.AssertNumberOfCalls(t, "Mint", 2)
}

func TestRevoke_OverlappingCallsRevokeOnce(t *testing.T) {
	store := newPausingStore()
	gw := new(chain.MockGateway)
	engine := NewEngine(store, nil, metadata.NewMockPublisher(slog.Default()), gw, Options{}, slog.Default())
	ctx := context.Background()

	claim, err := engine.Submit(ctx, aliceRequest(aliceWallet))
	require.NoError(t, err)
	gw.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.MintResult{TokenID: 42, TxHash: "0xdead"}, nil).Once()
	result, err := engine.Approve(ctx, claim.ID, "")
	require.NoError(t, err)
	require.True(t, result.Minted)

	gw.On("Revoke", mock.Anything, uint64(42)).Return("0xrevoke", nil)

	firstErr, secondErr := runOverlapping(store,
		func() error { _, err := engine.Revoke(ctx, claim.ID, "", ""); return err },
		func() error { _, err := engine.Revoke(ctx, claim.ID, "", ""); return err },
	)
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, interfaces.ErrMintInProgress)
	gw.AssertNumberOfCalls(t, "Revoke", 1)

	persisted, err := store.MemoryStore.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusRevoked, persisted.Status)
}

func TestMint_OutlivesCallerContext(t *testing.T) {
	env := newTestEnv(t, nil)
	claim := env.submit(t, aliceWallet)

	ctx, cancel := context.WithCancel(context.Background())
	env.chain.On("Mint", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(interfaces.MintResult{TokenID: 42, TxHash: "0xdead"}, nil).Once()

	result, err := env.engine.Approve(ctx, claim.ID, "")
	require.NoError(t, err)
	assert.True(t, result.Minted)
}

func TestCredentialMetadata(t *testing.T) {
	env := newTestEnv(t, nil)
	claim := &interfaces.Claim{
		StudentName:    "Alice",
		CredentialType: interfaces.CredentialMicro,
		CourseCode:     "02369",
		Description:    "Software Engineering: project",
		Evidence:       &interfaces.EvidenceRef{Key: "k", FileName: "f.pdf", Hash: interfaces.HashEvidence([]byte("x"))},
	}

	doc := env.engine.credentialMetadata(claim, testNow)
	assert.Equal(t, "Micro-Credential: 02369", doc.Name)
	assert.Equal(t, "https://campuscred.example/verify", doc.ExternalURL)
	assert.Equal(t, DefaultIssuer, doc.Issuer)
	assert.Equal(t, "Alice", doc.Recipient)
	assert.Equal(t, "2025-03-14", doc.IssueDate)
	assert.Equal(t, claim.Evidence.Hash, doc.EvidenceHash)
	assert.NotEmpty(t, doc.Attributes)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.submit(t, "")
	approved := env.submit(t, "")
	_, err := env.engine.Approve(ctx, approved.ID, "")
	require.NoError(t, err)
	env.mintedClaim(t, 42)

	stats, err := env.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ClaimStats{Total: 3, Pending: 1, ApprovedWeek: 1, TotalMinted: 1}, stats)
}
