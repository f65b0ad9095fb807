package metadata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// CanonicalJSON serializes doc with object keys sorted at every level.
func CanonicalJSON(doc interfaces.CredentialMetadata) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// encoding/json writes map keys in sorted order, so a round trip through
	// a generic value yields a stable key order independent of struct layout.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to normalize metadata: %w", err)
	}
	return json.Marshal(generic)
}

const defaultGateway = "https://gateway.pinata.cloud/ipfs/"

// GatewayURL converts an ipfs:// URI to an HTTPS gateway URL. Other URIs are
// returned unchanged.
func GatewayURL(uri string) string {
	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return defaultGateway + cid
	}
	return uri
}
