// Package token owns the cookie signing key and the MAC primitives derived from it.
//
// COOKIE_ENCRYPT_KEY is used verbatim as the HS256 key of the session cookie, so
// cookies minted by other deployments sharing the key stay valid. Secondary keys
// (CSRF) are derived with HKDF-SHA256 and never reuse the signing key directly.
//
// Environment:
//   - COOKIE_ENCRYPT_KEY: required, raw bytes, not trimmed.
package token
