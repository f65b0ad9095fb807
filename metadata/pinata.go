package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
)

const (
	DefaultPinataURL = "https://api.pinata.cloud"
	defaultPinName   = "CampusCred Metadata"
)

// PinataPublisher pins metadata documents through the Pinata pinning API.
type PinataPublisher struct {
	baseURL   string
	apiKey    string
	secretKey string
	client    *http.Client
	log       *slog.Logger
}

// NewPinataPublisher creates a publisher for the Pinata API at baseURL.
func NewPinataPublisher(baseURL, apiKey, secretKey string, timeout time.Duration, log *slog.Logger) *PinataPublisher {
	if baseURL == "" {
		baseURL = DefaultPinataURL
	}
	return &PinataPublisher{
		baseURL:   baseURL,
		apiKey:    apiKey,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

type pinJSONRequest struct {
	Content  json.RawMessage `json:"pinataContent"`
	Metadata struct {
		Name string `json:"name"`
	} `json:"pinataMetadata"`
}

type pinJSONResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (p *PinataPublisher) Publish(ctx context.Context, doc interfaces.CredentialMetadata) (string, error) {
	start := time.Now()

	content, err := CanonicalJSON(doc)
	if err != nil {
		return "", err
	}

	payload := pinJSONRequest{Content: content}
	payload.Metadata.Name = defaultPinName
	if doc.Name != "" {
		payload.Metadata.Name = doc.Name
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode pin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create pin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error("Pinata upload failed", "err", err, slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("failed to upload to IPFS: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read pin response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.log.Error("Pinata upload rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("failed to upload to IPFS: pinata returned status %d", resp.StatusCode)
	}

	var parsed pinJSONResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return "", fmt.Errorf("failed to upload to IPFS: empty IpfsHash in response")
	}

	uri := "ipfs://" + parsed.IpfsHash
	p.log.Info("Uploaded metadata to IPFS",
		slog.String("uri", uri),
		slog.Duration("duration", time.Since(start)))
	return uri, nil
}

func (p *PinataPublisher) Name() string {
	return "pinata"
}
