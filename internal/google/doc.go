// Package google builds authenticated Google API clients from a per-user
// access token.
//
// Tokens are supplied explicitly on every call. Refreshing is the caller's
// job, so a client built here never rotates tokens behind the store's back.
package google
