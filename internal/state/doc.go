// Package state encodes and decodes the opaque OAuth state parameter that
// carries the initiating user through a provider's consent screen.
//
// State tokens are compact HS256 JWTs. Decoding is deliberately soft: any
// malformed, tampered or expired token yields an empty Payload so callback
// handlers can treat every failure the same way.
package state
