/*
Package httpserver serves the CampusCred HTTP API.

The Server owns the listener, the metrics listener and the health endpoints
(/livez, /readyz, /drain, /undrain). The Handler registers the wallet session,
student, instructor and verification routes listed in package api on a chi
router.

# Sessions

Connecting a wallet issues a signed session token in an HttpOnly cookie.
Instructor routes require a session whose wallet equals the configured
instructor wallet. Disconnecting revokes the token until it would have
expired.

# Errors

Every failed JSON request answers api.ErrorResponse. Errors map to status
codes in one place:

	validation, state conflict  400
	no session                  401
	forbidden                   403
	not found                   404
	anything else               500

The verification pages (/verify/credential, /verify/private) answer 200 with
an error state instead, so they always render.
*/
package httpserver
