// Package session binds a connected wallet to a browser session.
//
// Sessions are HS256-signed JWTs carried in a cookie. Each token has a
// unique id; disconnecting records the id in a RevocationList until the
// token's natural expiry, so a copied cookie stops working immediately.
// The revocation list lives in memory or in Redis when several instances
// share sessions.
//
// Instructor status is derived on every parse by comparing the session
// wallet with the configured instructor wallet, case-insensitively. It is
// never taken from the token itself.
package session
