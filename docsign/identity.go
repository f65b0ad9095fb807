package docsign

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

const (
	SignerCommonName = "CampusCred Document Signer"
	keyBits          = 2048
	validity         = 10 * 365 * 24 * time.Hour
)

// Identity is a signing key and its self-signed certificate.
type Identity struct {
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
	CertPEM     []byte
}

// LoadOrCreateIdentity loads the identity stored at keyPath and certPath.
// When either file is missing or unreadable a new identity is generated and
// written to both paths.
func LoadOrCreateIdentity(keyPath, certPath string, log *slog.Logger) (*Identity, error) {
	id, err := loadIdentity(keyPath, certPath)
	if err == nil {
		log.Info("Loaded existing signing identity",
			slog.String("subject", id.Certificate.Subject.String()),
			slog.Time("notAfter", id.Certificate.NotAfter))
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load signing identity, generating a new one", "err", err)
	}

	id, err = NewIdentity(time.Now())
	if err != nil {
		return nil, err
	}
	if err := id.save(keyPath, certPath); err != nil {
		return nil, err
	}
	log.Info("Generated new signing identity", slog.String("cert", certPath))
	return id, nil
}

// NewIdentity generates an RSA key and a self-signed certificate valid from
// now for ten years.
func NewIdentity(now time.Time) (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	name := pkix.Name{
		Country:      []string{"DK"},
		Province:     []string{"Capital Region"},
		Locality:     []string{"Copenhagen"},
		Organization: []string{"CampusCred"},
		CommonName:   SignerCommonName,
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		Issuer:                name,
		NotBefore:             now.UTC(),
		NotAfter:              now.UTC().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing certificate: %w", err)
	}

	return &Identity{
		Key:         key,
		Certificate: cert,
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}, nil
}

func loadIdentity(keyPath, certPath string) (*Identity, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, errors.New("failed to decode private key PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		// Try PKCS#1 format if PKCS#8 fails
		parsed, err = x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key must be RSA, got %T", parsed)
	}

	cert, err := ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, err
	}

	certKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || !certKey.Equal(&key.PublicKey) {
		return nil, errors.New("private key doesn't match certificate")
	}

	return &Identity{Key: key, Certificate: cert, CertPEM: certPEM}, nil
}

// ParseCertificatePEM parses a single PEM encoded certificate.
func ParseCertificatePEM(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("failed to decode certificate PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

func (id *Identity) save(keyPath, certPath string) error {
	keyDER, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		return fmt.Errorf("failed to encode signing key: %w", err)
	}

	for _, dir := range []string{filepath.Dir(keyPath), filepath.Dir(certPath)} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create signing identity directory: %w", err)
		}
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		return fmt.Errorf("failed to write signing key: %w", err)
	}
	if err := os.WriteFile(certPath, id.CertPEM, 0644); err != nil {
		return fmt.Errorf("failed to write signing certificate: %w", err)
	}
	return nil
}

// Fingerprint returns the hex SHA-256 digest of the DER certificate.
func (id *Identity) Fingerprint() string {
	sum := sha256.Sum256(id.Certificate.Raw)
	return hex.EncodeToString(sum[:])
}

// CertificateInfo describes the signing certificate for offline verifiers.
type CertificateInfo struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	Fingerprint  string    `json:"sha256_fingerprint"`
	PEM          string    `json:"certificate_pem"`
}

// Info returns the certificate description.
func (id *Identity) Info() CertificateInfo {
	return CertificateInfo{
		Subject:      id.Certificate.Subject.String(),
		Issuer:       id.Certificate.Issuer.String(),
		SerialNumber: id.Certificate.SerialNumber.String(),
		NotBefore:    id.Certificate.NotBefore.UTC(),
		NotAfter:     id.Certificate.NotAfter.UTC(),
		Fingerprint:  id.Fingerprint(),
		PEM:          string(id.CertPEM),
	}
}
