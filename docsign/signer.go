package docsign

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	trailerBegin = "%CampusCred-Signature-Begin"
	trailerEnd   = "%CampusCred-Signature-End"
	signatureKey = "Signature"
	algorithm    = "RSASSA-PSS-SHA256"
	author       = "CampusCred System"
	dateLayout   = "D:20060102150405Z"
)

var (
	ErrNoSignature      = errors.New("document carries no signature trailer")
	ErrInvalidSignature = errors.New("document signature is invalid")
)

// Metadata describes a signed document.
type Metadata struct {
	Title   string
	Subject string
}

// Signed is the metadata recovered from a signed document.
type Signed struct {
	Title             string
	Subject           string
	Author            string
	Signer            string
	CreatedAt         time.Time
	CertFingerprint   string
	OriginalByteCount int
}

// Signer attaches authenticity trailers to documents.
type Signer struct {
	id  *Identity
	now func() time.Time
	log *slog.Logger
}

func NewSigner(id *Identity, log *slog.Logger) *Signer {
	return &Signer{id: id, now: time.Now, log: log}
}

// Identity returns the signing identity.
func (s *Signer) Identity() *Identity {
	return s.id
}

// Sign returns content followed by a signed metadata trailer.
func (s *Signer) Sign(content []byte, meta Metadata) ([]byte, error) {
	title := meta.Title
	if title == "" {
		title = "Signed Document"
	}
	subject := meta.Subject
	if subject == "" {
		subject = "Academic Credential"
	}

	header := trailerHeader([][2]string{
		{"Title", title},
		{"Subject", subject},
		{"Author", author},
		{"Signer", s.id.Certificate.Subject.String()},
		{"CreationDate", s.now().UTC().Format(dateLayout)},
		{"Algorithm", algorithm},
		{"CertificateSHA256", s.id.Fingerprint()},
	})

	digest := signedDigest(content, header)
	sig, err := rsa.SignPSS(rand.Reader, s.id.Key, crypto.SHA256, digest, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}

	var out bytes.Buffer
	out.Grow(len(content) + len(header) + 512)
	out.Write(content)
	out.Write(header)
	fmt.Fprintf(&out, "%%%s: %s\n%s\n", signatureKey, base64.StdEncoding.EncodeToString(sig), trailerEnd)

	s.log.Debug("Document signed", slog.Int("bytes", len(content)))
	return out.Bytes(), nil
}

func trailerHeader(fields [][2]string) []byte {
	var b bytes.Buffer
	b.WriteString("\n" + trailerBegin + "\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%%%s: %s\n", f[0], singleLine(f[1]))
	}
	return b.Bytes()
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func signedDigest(content, header []byte) []byte {
	h := sha256.New()
	h.Write(content)
	h.Write(header)
	return h.Sum(nil)
}

// Verify checks the trailer signature of a signed document against cert and
// returns the recovered metadata.
func Verify(signed []byte, cert *x509.Certificate) (*Signed, error) {
	start := bytes.LastIndex(signed, []byte("\n"+trailerBegin+"\n"))
	if start < 0 {
		return nil, ErrNoSignature
	}
	content := signed[:start]
	trailer := string(signed[start:])

	sigLine := "%" + signatureKey + ": "
	sigIdx := strings.LastIndex(trailer, "\n"+sigLine)
	if sigIdx < 0 || !strings.HasSuffix(trailer, "\n"+trailerEnd+"\n") {
		return nil, ErrNoSignature
	}
	header := []byte(trailer[:sigIdx+1])

	sigB64 := strings.TrimSuffix(trailer[sigIdx+1+len(sigLine):], "\n"+trailerEnd+"\n")
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate key must be RSA, got %T", cert.PublicKey)
	}
	if err := rsa.VerifyPSS(pub, crypto.SHA256, signedDigest(content, header), sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	fields := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(string(header)), "\n")[1:] {
		k, v, found := strings.Cut(strings.TrimPrefix(line, "%"), ": ")
		if found {
			fields[k] = v
		}
	}

	sum := sha256.Sum256(cert.Raw)
	if fields["CertificateSHA256"] != fmt.Sprintf("%x", sum[:]) {
		return nil, fmt.Errorf("%w: certificate fingerprint mismatch", ErrInvalidSignature)
	}

	created, _ := time.Parse(dateLayout, fields["CreationDate"])
	return &Signed{
		Title:             fields["Title"],
		Subject:           fields["Subject"],
		Author:            fields["Author"],
		Signer:            fields["Signer"],
		CreatedAt:         created,
		CertFingerprint:   fields["CertificateSHA256"],
		OriginalByteCount: len(content),
	}, nil
}
