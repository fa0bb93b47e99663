// Package integration defines the closed set of third-party apps a user can
// connect, the provider registry that maps each app to its OAuth provider, and
// the error taxonomy shared by the rest of calconnect.
//
// Everything in this package is immutable after construction and safe for
// concurrent use.
package integration
