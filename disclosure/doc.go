// Package disclosure answers public verification queries about minted
// credentials and manages time-boxed verifier links that disclose the
// personal data behind a credential.
//
// Public views carry only non-personal fields. A verifier link can only be
// issued to the wallet recorded on the claim; redeeming it within its
// lifetime yields the private view and a signed copy of the evidence. Links
// are held in process memory by LinkStore and are never persisted. Unknown
// and expired links produce the same error.
package disclosure
