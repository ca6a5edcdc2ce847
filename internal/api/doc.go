// Package api implements the HTTP API for habitatT authentication.
//
// This package provides:
//   - login, logout and profile endpoints backed by auth.Service
//   - the password recovery flow (forgot_password, reset_password/{token})
//     and an admin-only endpoint that sends a reset link to any principal
//   - middleware: request ID, logging, recovery, CORS, body size limit,
//     bearer/cookie authentication and role checks
//   - background pruning of the revocation registry and reset token store
//
// Every error response has the body {"msg": ..., "code": ...}. Internal
// error text is logged, never returned.
//
// The server follows the same lifecycle as the infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
