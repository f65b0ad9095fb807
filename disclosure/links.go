package disclosure

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// Clock returns the current time.
type Clock func() time.Time

// tokenBytes is the entropy of a verifier link token.
const tokenBytes = 32

// LinkStore is the in-memory verifier link table.
type LinkStore struct {
	mu    sync.Mutex
	links map[string]interfaces.VerifierLink
	now   Clock
}

func NewLinkStore(now Clock) *LinkStore {
	if now == nil {
		now = time.Now
	}
	return &LinkStore{links: make(map[string]interfaces.VerifierLink), now: now}
}

// Put stores link under its token.
func (s *LinkStore) Put(link interfaces.VerifierLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.Token] = link
}

// Get returns the link for token. An expired link is deleted. Unknown and
// expired tokens both yield ErrLinkInvalid.
func (s *LinkStore) Get(token string) (interfaces.VerifierLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok {
		return interfaces.VerifierLink{}, interfaces.ErrLinkInvalid
	}
	if !s.now().Before(link.ExpiresAt) {
		delete(s.links, token)
		return interfaces.VerifierLink{}, interfaces.ErrLinkInvalid
	}
	return link, nil
}

// Sweep deletes expired links and returns how many were removed.
func (s *LinkStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, link := range s.links {
		if !now.Before(link.ExpiresAt) {
			delete(s.links, token)
			removed++
		}
	}
	return removed
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
