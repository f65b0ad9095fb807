package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIssuerKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(crypto.FromECDSA(key))
	want := crypto.PubkeyToAddress(key.PublicKey)

	t.Run("empty", func(t *testing.T) {
		got, err := LoadIssuerKey(context.Background(), "", nil)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("hex with prefix", func(t *testing.T) {
		got, err := LoadIssuerKey(context.Background(), "0x"+hexKey, nil)
		require.NoError(t, err)
		assert.Equal(t, want, crypto.PubkeyToAddress(got.PublicKey))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "issuer.key")
		require.NoError(t, os.WriteFile(path, []byte(hexKey+"\n"), 0600))

		got, err := LoadIssuerKey(context.Background(), "file://"+path, nil)
		require.NoError(t, err)
		assert.Equal(t, want, crypto.PubkeyToAddress(got.PublicKey))
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := LoadIssuerKey(context.Background(), "not-a-key", nil)
		assert.Error(t, err)
	})

	t.Run("vault", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/secret/data/campuscred/issuer", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"data": map[string]any{"private_key": hexKey},
				},
			})
		}))
		defer server.Close()

		client, err := NewVaultClient(server.URL, "test-token")
		require.NoError(t, err)

		got, err := LoadIssuerKey(context.Background(), "vault://secret/campuscred/issuer#private_key", client)
		require.NoError(t, err)
		assert.Equal(t, want, crypto.PubkeyToAddress(got.PublicKey))

		_, err = LoadIssuerKey(context.Background(), "vault://secret/campuscred/issuer#missing", client)
		assert.Error(t, err)
	})

	t.Run("vault without client", func(t *testing.T) {
		_, err := LoadIssuerKey(context.Background(), "vault://secret/x#k", nil)
		assert.Error(t, err)
	})
}
