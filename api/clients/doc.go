/*
Package clients provides Go clients for the CampusCred HTTP API.

VerifyClient covers the routes a third-party verifier uses: the public
credential view, disclosure link redemption, signed evidence download and the
signer certificate. VerifyEvidence downloads evidence and checks its signature
against the signer certificate served by the same deployment.

	c := clients.NewVerifyClient("https://campuscred.example", 30*time.Second)
	view, err := c.Credential(ctx, 42)
	signed, content, err := c.VerifyEvidence(ctx, token)
*/
package clients
