// Package auth provides authentication and authorisation for habitatT.
//
// Two principal kinds share one credential model: administrators and
// tenants, distinguished by a closed Role enum. The package implements:
//   - Argon2id password hashing, with verify-only support for legacy
//     bcrypt, pbkdf2 and scrypt hashes that are upgraded on login
//   - HS256 access tokens carrying email, role and a unique jti
//   - a concurrent revocation registry keyed by jti, pruned once tokens expire
//   - single-use, time-limited password reset tokens
//   - a Guard that gates requests on a valid, unrevoked token and a role
//
// Revocation and reset state live in process memory and are lost on
// restart. Tokens revoked before a restart become valid again until they
// expire.
package auth
