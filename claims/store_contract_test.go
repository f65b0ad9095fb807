package claims

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClaim(wallet interfaces.WalletAddress) *interfaces.Claim {
	return &interfaces.Claim{
		StudentName:    "Alice",
		StudentEmail:   "alice@x.com",
		WalletAddress:  wallet,
		CredentialType: interfaces.CredentialMicro,
		CourseCode:     "02369",
		Description:    "Software Engineering: built a thing",
	}
}

const testWallet = interfaces.WalletAddress("0xabc0000000000000000000000000000000000001")

// testClaimStore runs behaviour shared by every ClaimStore implementation.
func testClaimStore(t *testing.T, newStore func(t *testing.T) interfaces.ClaimStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)

		created, err := store.Create(ctx, newTestClaim(testWallet))
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, interfaces.StatusPending, created.Status)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Nil(t, created.Evidence)
		assert.Nil(t, created.TokenID)

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Alice", got.StudentName)
		assert.Equal(t, testWallet, got.WalletAddress)

		_, err = store.Get(ctx, created.ID+1000)
		assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)
	})

	t.Run("attach evidence", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, newTestClaim(""))
		require.NoError(t, err)

		ref := interfaces.EvidenceRef{
			Key:      "claim_1_20250101_120000.pdf",
			FileName: "transcript.pdf",
			Hash:     interfaces.HashEvidence([]byte("pdf")),
		}
		require.NoError(t, store.AttachEvidence(ctx, created.ID, ref))

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Evidence)
		assert.Equal(t, ref, *got.Evidence)

		err = store.AttachEvidence(ctx, created.ID, interfaces.EvidenceRef{Key: "k"})
		assert.ErrorIs(t, err, interfaces.ErrValidation)

		err = store.AttachEvidence(ctx, created.ID+1000, ref)
		assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)
	})

	t.Run("transition compare and set", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, newTestClaim(testWallet))
		require.NoError(t, err)

		approved, err := store.Transition(ctx, created.ID, interfaces.StatusPending, "approve", func(c *interfaces.Claim) error {
			now := time.Now().UTC()
			c.Status = interfaces.StatusApproved
			c.ApprovedAt = &now
			c.ReviewedBy = "instructor"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, interfaces.StatusApproved, approved.Status)
		assert.NotNil(t, approved.ApprovedAt)

		// Wrong precondition never writes
		_, err = store.Transition(ctx, created.ID, interfaces.StatusPending, "approve", func(c *interfaces.Claim) error {
			c.Status = interfaces.StatusDenied
			return nil
		})
		var conflict *interfaces.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, interfaces.StatusApproved, conflict.Current)
		assert.Equal(t, "claim is already approved", conflict.Error())

		// A failing mutation aborts the transition
		_, err = store.Transition(ctx, created.ID, interfaces.StatusApproved, "mint", func(c *interfaces.Claim) error {
			c.Status = interfaces.StatusMinted
			return errors.New("chain down")
		})
		assert.EqualError(t, err, "chain down")

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, interfaces.StatusApproved, got.Status)
		assert.Equal(t, "instructor", got.ReviewedBy)

		_, err = store.Transition(ctx, created.ID+1000, interfaces.StatusPending, "approve", func(c *interfaces.Claim) error { return nil })
		assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)
	})

	t.Run("concurrent transitions have a single winner", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, newTestClaim(testWallet))
		require.NoError(t, err)

		const goroutines = 20
		var wg sync.WaitGroup
		var wins, conflicts atomic.Int32
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Transition(ctx, created.ID, interfaces.StatusPending, "approve", func(c *interfaces.Claim) error {
					c.Status = interfaces.StatusApproved
					return nil
				})
				switch {
				case err == nil:
					wins.Add(1)
				case interfaces.IsConflict(err):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(goroutines-1), conflicts.Load())
	})

	t.Run("find by token", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, newTestClaim(testWallet))
		require.NoError(t, err)

		_, err = store.FindByToken(ctx, 42)
		assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)

		_, err = store.Transition(ctx, created.ID, interfaces.StatusPending, "mint", func(c *interfaces.Claim) error {
			id := uint64(42)
			now := time.Now().UTC()
			c.Status = interfaces.StatusMinted
			c.TokenID = &id
			c.TxHash = "0xdead"
			c.MetadataURI = "ipfs://QmTest"
			c.MintedAt = &now
			return nil
		})
		require.NoError(t, err)

		got, err := store.FindByToken(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		require.NotNil(t, got.TokenID)
		assert.Equal(t, uint64(42), *got.TokenID)
		assert.Equal(t, "0xdead", got.TxHash)

		// Token id zero marks an unknown id and never resolves
		_, err = store.FindByToken(ctx, 0)
		assert.ErrorIs(t, err, interfaces.ErrClaimNotFound)
	})

	t.Run("list and stats", func(t *testing.T) {
		store := newStore(t)
		now := time.Now().UTC()

		other := interfaces.WalletAddress("0xabc0000000000000000000000000000000000002")
		ids := make([]int64, 0, 4)
		for _, w := range []interfaces.WalletAddress{testWallet, testWallet, other, ""} {
			c, err := store.Create(ctx, newTestClaim(w))
			require.NoError(t, err)
			ids = append(ids, c.ID)
		}

		_, err := store.Transition(ctx, ids[0], interfaces.StatusPending, "approve", func(c *interfaces.Claim) error {
			c.Status = interfaces.StatusApproved
			c.ApprovedAt = &now
			return nil
		})
		require.NoError(t, err)

		old := now.Add(-8 * 24 * time.Hour)
		_, err = store.Transition(ctx, ids[1], interfaces.StatusPending, "approve", func(c *interfaces.Claim) error {
			c.Status = interfaces.StatusApproved
			c.ApprovedAt = &old
			return nil
		})
		require.NoError(t, err)

		_, err = store.Transition(ctx, ids[2], interfaces.StatusPending, "mint", func(c *interfaces.Claim) error {
			id := uint64(9)
			c.Status = interfaces.StatusMinted
			c.TokenID = &id
			c.MintedAt = &now
			return nil
		})
		require.NoError(t, err)

		all, err := store.List(ctx, interfaces.ClaimFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		pending, err := store.List(ctx, interfaces.ClaimFilter{Status: interfaces.StatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ids[3], pending[0].ID)

		mine, err := store.List(ctx, interfaces.ClaimFilter{Wallet: testWallet})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		approved, err := store.List(ctx, interfaces.ClaimFilter{Status: interfaces.StatusApproved, OrderBy: interfaces.OrderByApproved, Limit: 1})
		require.NoError(t, err)
		require.Len(t, approved, 1)
		assert.Equal(t, ids[0], approved[0].ID)

		stats, err := store.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, interfaces.ClaimStats{Total: 4, Pending: 1, ApprovedWeek: 1, TotalMinted: 1}, stats)
	})

	t.Run("returned claims are copies", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, newTestClaim(testWallet))
		require.NoError(t, err)

		created.StudentName = strings.ToUpper(created.StudentName)
		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.StudentName)
	})
}
