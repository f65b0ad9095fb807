package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/disclosure"
	"github.com/ruteri/campuscred-backend/docsign"
)

// VerifyClient talks to the public verification routes of a CampusCred server.
type VerifyClient struct {
	// ServerAddr is the base URL of the CampusCred server
	ServerAddr string

	HTTPClient *http.Client
}

func NewVerifyClient(serverAddr string, timeout time.Duration) *VerifyClient {
	return &VerifyClient{
		ServerAddr: strings.TrimSuffix(serverAddr, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Credential fetches the public view of a token. Error states reported by
// the server are returned as errors.
func (c *VerifyClient) Credential(ctx context.Context, tokenID uint64) (*disclosure.PublicView, error) {
	var resp api.CredentialResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/verify/credential/%d", tokenID), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("credential %d: %s", tokenID, resp.Error)
	}
	return resp.Credential, nil
}

// CreateVerifierLink requests a disclosure link as the owner wallet.
func (c *VerifyClient) CreateVerifierLink(ctx context.Context, tokenID uint64, wallet string) (*api.VerifierLinkResponse, error) {
	body, err := json.Marshal(api.VerifierLinkRequest{WalletAddress: wallet})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/verify/generate-verifier-link/%d", c.ServerAddr, tokenID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp api.VerifierLinkResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PrivateView redeems a disclosure token.
func (c *VerifyClient) PrivateView(ctx context.Context, token string) (*disclosure.PrivateView, error) {
	var resp api.PrivateCredentialResponse
	if err := c.getJSON(ctx, "/verify/private/"+token, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("private view: %s", resp.Error)
	}
	return resp.Credential, nil
}

// DownloadEvidence fetches signed evidence and returns its bytes and filename.
func (c *VerifyClient) DownloadEvidence(ctx context.Context, token string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+"/verify/download-evidence/"+token, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("could not request evidence: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", responseError("evidence", resp)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	fileName := "evidence.pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		fileName = params["filename"]
	}
	return content, fileName, nil
}

// SignerCertificate fetches the document signer certificate.
func (c *VerifyClient) SignerCertificate(ctx context.Context) (*docsign.CertificateInfo, error) {
	var info docsign.CertificateInfo
	if err := c.getJSON(ctx, "/verify/signer-certificate", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// VerifyEvidence downloads signed evidence and checks its signature against
// the server's signer certificate.
func (c *VerifyClient) VerifyEvidence(ctx context.Context, token string) (*docsign.Signed, []byte, error) {
	info, err := c.SignerCertificate(ctx)
	if err != nil {
		return nil, nil, err
	}
	cert, err := docsign.ParseCertificatePEM([]byte(info.PEM))
	if err != nil {
		return nil, nil, err
	}
	content, _, err := c.DownloadEvidence(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	signed, err := docsign.Verify(content, cert)
	if err != nil {
		return nil, nil, err
	}
	return signed, content, nil
}

func (c *VerifyClient) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, v)
}

func (c *VerifyClient) doJSON(req *http.Request, v any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(req.URL.Path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("could not parse %s response: %w", req.URL.Path, err)
	}
	return nil
}

func responseError(what string, resp *http.Response) error {
	var body api.ErrorResponse
	raw, err := io.ReadAll(resp.Body)
	if err == nil && json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s returned error %d: %s", what, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%s returned non-200 response: %d", what, resp.StatusCode)
}
