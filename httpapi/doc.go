// Package httpapi mounts the authcore Engine on a chi router.
//
// Routes:
//
//	POST /api/register     create an account
//	POST /api/login        exchange credentials for a token pair
//	POST /api/refresh      redeem a refresh token
//	POST /api/logout       revoke one refresh token (gated)
//	POST /api/logout/all   revoke every refresh token of the caller (gated)
//	GET  /api/me           the authenticated caller (gated)
//	GET  /api/whoami       the caller, authenticated or not
//	GET  /healthz          liveness
//	GET  /metrics          Prometheus exposition, when configured
//
// Every failure is rendered by apperr.Write.
package httpapi
