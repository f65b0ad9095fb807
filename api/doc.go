/*
Package api holds the wire types and server configuration of the CampusCred
HTTP API. Handlers live in httpserver, Go clients in api/clients.

# Routes

	POST /auth/connect-wallet                     bind a wallet to the session
	POST /auth/disconnect                         clear the session
	GET  /auth/check-session                      session introspection
	GET  /student/claims                          claims of the session wallet
	POST /student/submit-claim                    multipart claim submission
	GET  /instructor/dashboard                    pending, approved and minted claims with stats
	GET  /instructor/claim/{id}                   claim detail
	POST /instructor/approve/{id}                 approve and attempt to mint
	POST /instructor/reject/{id}                  deny with an optional reason
	POST /instructor/retry-mint/{id}              retry minting an approved claim
	POST /instructor/revoke/{id}                  revoke a minted credential on chain
	POST /instructor/reconcile/{id}               record the token id of a minted claim
	GET  /verify/credential/{tokenId}             public credential view
	POST /verify/generate-verifier-link/{tokenId} issue a 15 minute disclosure link
	GET  /verify/private/{token}                  private view through a disclosure link
	GET  /verify/download-evidence/{token}        signed evidence through a disclosure link
	GET  /verify/signer-certificate               document signer certificate

Instructor routes require a session bound to the configured instructor wallet.
Failed JSON requests return ErrorResponse. Verification pages answer 200 with
an error state so that they always render.
*/
package api
