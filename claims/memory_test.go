package claims

import (
	"testing"

	"github.com/ruteri/campuscred-backend/interfaces"
)

func TestMemoryStore(t *testing.T) {
	testClaimStore(t, func(t *testing.T) interfaces.ClaimStore {
		return NewMemoryStore()
	})
}
