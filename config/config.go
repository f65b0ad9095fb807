// Package config holds the typed configuration of the CampusCred server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/campuscred-backend/interfaces"
)

const (
	// DisclosureTTL is the fixed lifetime of a verifier link.
	DisclosureTTL = 15 * time.Minute

	// ConfirmationTimeout bounds the wait for a transaction receipt.
	ConfirmationTimeout = 120 * time.Second

	DefaultListenAddr     = "127.0.0.1:5000"
	DefaultPublicBaseURL  = "http://localhost:5000"
	DefaultEvidenceDir    = "uploads/evidence"
	DefaultSigningKeyPath = "certs/signing_key.pem"
	DefaultSigningCert    = "certs/signing_cert.pem"
	DefaultPinataURL      = "https://api.pinata.cloud"
	DefaultPublishTimeout = 30 * time.Second
)

// Chain configures the Chain Gateway. Empty values are reported at first use.
type Chain struct {
	RPCURL          string
	ContractAddress string
	// IssuerKeyRef is a hex key, file://path or vault://mount/path#field.
	IssuerKeyRef string
	ChainID      int64
}

// Publisher configures the Metadata Publisher. With no credentials the
// deterministic mock is used.
type Publisher struct {
	PinataURL       string
	PinataAPIKey    string
	PinataSecretKey string
	IPFSAPIAddr     string
	Timeout         time.Duration
}

// Evidence configures the Evidence Store. An empty URI selects local disk.
type Evidence struct {
	URI       string
	LocalDir  string
	AccessKey string
	SecretKey string
}

// Vault locates the secret store used for vault:// key references.
type Vault struct {
	Addr  string
	Token string
}

// Signing locates the persisted document signing identity.
type Signing struct {
	KeyPath  string
	CertPath string
}

// Config is the complete server configuration.
type Config struct {
	ListenAddr    string
	PublicBaseURL string
	Issuer        string

	// InstructorWallet is the only wallet allowed on instructor endpoints.
	InstructorWallet string

	DatabaseURL   string
	RedisURL      string
	SessionSecret string
	SessionTTL    time.Duration

	Chain     Chain
	Publisher Publisher
	Evidence  Evidence
	Vault     Vault
	Signing   Signing
}

// Default returns a configuration that runs fully local: in-memory claims,
// local evidence, mock publisher and an unconfigured chain.
func Default() *Config {
	return &Config{
		ListenAddr:    DefaultListenAddr,
		PublicBaseURL: DefaultPublicBaseURL,
		Issuer:        "CampusCred",
		SessionTTL:    24 * time.Hour,
		Publisher: Publisher{
			PinataURL: DefaultPinataURL,
			Timeout:   DefaultPublishTimeout,
		},
		Evidence: Evidence{LocalDir: DefaultEvidenceDir},
		Signing: Signing{
			KeyPath:  DefaultSigningKeyPath,
			CertPath: DefaultSigningCert,
		},
	}
}

// Instructor returns the normalized instructor wallet, or "" when unset.
func (c *Config) Instructor() interfaces.WalletAddress {
	addr, err := interfaces.ParseWalletAddress(c.InstructorWallet)
	if err != nil {
		return ""
	}
	return addr
}

// Validate checks the shape of the configuration. Missing chain settings are
// not an error here.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if err := checkURL("public base URL", c.PublicBaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.InstructorWallet != "" {
		if _, err := interfaces.ParseWalletAddress(c.InstructorWallet); err != nil {
			errs = append(errs, fmt.Errorf("instructor wallet: %w", err))
		}
	}
	if c.DatabaseURL != "" {
		if err := checkURL("database URL", c.DatabaseURL, "postgres", "postgresql"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.RedisURL != "" {
		if err := checkURL("redis URL", c.RedisURL, "redis", "rediss"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Chain.RPCURL != "" {
		if err := checkURL("RPC URL", c.Chain.RPCURL, "http", "https", "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Chain.ContractAddress != "" && !common.IsHexAddress(c.Chain.ContractAddress) {
		errs = append(errs, fmt.Errorf("invalid contract address %q", c.Chain.ContractAddress))
	}
	if c.Chain.ChainID < 0 {
		errs = append(errs, fmt.Errorf("invalid chain id %d", c.Chain.ChainID))
	}
	if c.Evidence.URI != "" {
		if err := checkURL("evidence store URI", c.Evidence.URI, "file", "s3"); err != nil {
			errs = append(errs, err)
		}
	} else if c.Evidence.LocalDir == "" {
		errs = append(errs, errors.New("evidence directory is required without an evidence store URI"))
	}
	if (c.Publisher.PinataAPIKey == "") != (c.Publisher.PinataSecretKey == "") {
		errs = append(errs, errors.New("pinata API key and secret must be set together"))
	}
	if strings.HasPrefix(c.Chain.IssuerKeyRef, "vault://") && c.Vault.Addr == "" {
		errs = append(errs, errors.New("vault address is required for vault:// issuer keys"))
	}
	if c.Signing.KeyPath == "" || c.Signing.CertPath == "" {
		errs = append(errs, errors.New("signing key and certificate paths are required"))
	}

	return errors.Join(errs...)
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: scheme must be one of %s", name, raw, strings.Join(schemes, ", "))
}
