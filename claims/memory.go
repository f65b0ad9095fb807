package claims

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// MemoryStore is an in-process ClaimStore.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[int64]*interfaces.Claim
	nextID int64
	now    func() time.Time
}

var _ interfaces.ClaimStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. Ids start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims: make(map[int64]*interfaces.Claim),
		nextID: 1,
		now:    time.Now,
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Create(ctx context.Context, claim *interfaces.Claim) (*interfaces.Claim, error) {
	if claim == nil {
		return nil, fmt.Errorf("%w: nil claim", interfaces.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := claim.Clone()
	c.ID = s.nextID
	s.nextID++

	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = interfaces.StatusPending
	}

	s.claims[c.ID] = c
	return c.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*interfaces.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return nil, interfaces.ErrClaimNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) FindByToken(ctx context.Context, tokenID uint64) (*interfaces.Claim, error) {
	if tokenID == 0 {
		return nil, interfaces.ErrClaimNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var found *interfaces.Claim
	for _, c := range s.claims {
		if c.TokenID == nil || *c.TokenID != tokenID {
			continue
		}
		if c.Status != interfaces.StatusMinted && c.Status != interfaces.StatusRevoked {
			continue
		}
		if found == nil || c.ID > found.ID {
			found = c
		}
	}
	if found == nil {
		return nil, interfaces.ErrClaimNotFound
	}
	return found.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, filter interfaces.ClaimFilter) ([]*interfaces.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*interfaces.Claim, 0)
	for _, c := range s.claims {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Wallet != "" && c.WalletAddress != filter.Wallet {
			continue
		}
		result = append(result, c.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		ti, tj := sortKey(result[i], filter.OrderBy), sortKey(result[j], filter.OrderBy)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func sortKey(c *interfaces.Claim, order interfaces.ClaimOrder) time.Time {
	switch order {
	case interfaces.OrderByApproved:
		if c.ApprovedAt != nil {
			return *c.ApprovedAt
		}
		return time.Time{}
	case interfaces.OrderByMinted:
		if c.MintedAt != nil {
			return *c.MintedAt
		}
		return time.Time{}
	default:
		return c.CreatedAt
	}
}

func (s *MemoryStore) Stats(ctx context.Context, now time.Time) (interfaces.ClaimStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	weekAgo := now.Add(-7 * 24 * time.Hour)
	var stats interfaces.ClaimStats
	for _, c := range s.claims {
		stats.Total++
		switch c.Status {
		case interfaces.StatusPending:
			stats.Pending++
		case interfaces.StatusApproved:
			if c.ApprovedAt != nil && !c.ApprovedAt.Before(weekAgo) {
				stats.ApprovedWeek++
			}
		case interfaces.StatusMinted:
			stats.TotalMinted++
		}
	}
	return stats, nil
}

func (s *MemoryStore) AttachEvidence(ctx context.Context, id int64, ref interfaces.EvidenceRef) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: incomplete evidence reference", interfaces.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return interfaces.ErrClaimNotFound
	}
	ev := ref
	c.Evidence = &ev
	c.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Transition(ctx context.Context, id int64, from interfaces.ClaimStatus, action string, mutate func(*interfaces.Claim) error) (*interfaces.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.claims[id]
	if !ok {
		return nil, interfaces.ErrClaimNotFound
	}
	if current.Status != from {
		return nil, interfaces.NewConflict(current.Status, action)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if !next.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q after %s", next.Status, action)
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now().UTC()

	s.claims[id] = next
	return next.Clone(), nil
}
