package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/api"
)

// LoadIssuerKey resolves the issuer signing key from a reference.
//
// Supported references:
//   - a hex-encoded secp256k1 key, with or without 0x prefix
//   - file:///path/to/key containing the hex key
//   - vault://mount/path#field read from a KV v2 secret
//
// An empty reference returns a nil key; the gateway reports the missing
// key at first use. vaultClient may be nil when no vault reference is used.
func LoadIssuerKey(ctx context.Context, ref string, vaultClient *api.Client) (*ecdsa.PrivateKey, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(ref, "file://"):
		raw, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to read issuer key file: %w", err)
		}
		return parseHexKey(string(raw))
	case strings.HasPrefix(ref, "vault://"):
		if vaultClient == nil {
			return nil, fmt.Errorf("vault reference %q requires a vault client", ref)
		}
		hexKey, err := readVaultField(ctx, vaultClient, ref)
		if err != nil {
			return nil, err
		}
		return parseHexKey(hexKey)
	default:
		return parseHexKey(ref)
	}
}

// NewVaultClient creates a vault client for addr. An empty token falls back
// to the client's environment defaults.
func NewVaultClient(addr, token string) (*api.Client, error) {
	config := api.DefaultConfig()
	if addr != "" {
		config.Address = addr
	}
	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	return client, nil
}

func parseHexKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer key: %w", err)
	}
	return key, nil
}

func readVaultField(ctx context.Context, client *api.Client, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid vault reference: %w", err)
	}
	mount := u.Host
	secretPath := strings.Trim(u.Path, "/")
	field := u.Fragment
	if mount == "" || secretPath == "" || field == "" {
		return "", fmt.Errorf("vault reference must be vault://mount/path#field, got %q", ref)
	}

	path := fmt.Sprintf("%s/data/%s", mount, secretPath)
	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read issuer key from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("issuer key not found in Vault at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid data format in Vault response")
	}
	value, ok := data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("field %q not found in Vault secret", field)
	}
	return value, nil
}
