// Package session implements the Studyrooms session cookie.
//
// A session is a compact HS256 JWT signed with COOKIE_ENCRYPT_KEY. The payload
// carries {email, cookieExpires, id} plus iat, exp and a ULID jti. Anything that
// fails verification (bad signature, other algorithm, expired, revoked) is
// reported as "no session" rather than as an error.
//
// Logout revokes the jti in a RevocationStore until the token would have
// expired anyway. The store is in-memory by default and Postgres-backed when a
// database is configured.
//
// Cookie transport (HTTP) lives in the auth api package.
package session
