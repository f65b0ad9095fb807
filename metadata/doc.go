// Package metadata publishes credential metadata documents to a
// content-addressed store and returns ipfs:// URIs.
//
// Three publishers implement interfaces.MetadataPublisher:
//
//   - PinataPublisher pins the JSON document through the Pinata pinning API
//   - IPFSPublisher adds and pins the document on an IPFS node's HTTP API
//   - MockPublisher derives the URI from a SHA-256 digest of the canonical
//     document, so identical documents always map to the same URI
//
// NewPublisher selects the implementation once at startup. A failing live
// publisher returns its error; it never degrades to mock mode.
package metadata
