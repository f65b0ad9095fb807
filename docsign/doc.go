// Package docsign holds the long-lived signing identity used to authenticate
// evidence documents released through disclosure links.
//
// The identity is an RSA key with a self-signed certificate. It is generated
// once and persisted as PEM files; later runs load the same identity so
// previously downloaded documents remain verifiable.
//
// Signing appends an authenticity trailer to the document: descriptive
// metadata (title, subject, author, signer identity, creation date), the
// SHA-256 fingerprint of the signing certificate and an RSA-PSS signature
// over the original bytes plus the metadata lines. For PDF documents the
// trailer is a block of comment lines after the final %%EOF marker, which
// readers ignore. Verify recovers the metadata and checks the signature
// using only the certificate.
package docsign
