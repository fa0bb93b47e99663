// Package service is the integration facade. It combines the provider
// registry, the OAuth engine, the token store and the calendar adapter into
// the operations exposed over HTTP and MCP.
//
// Every read-modify-write on one (user, app type) row runs under a per-key
// lock, and stores with optimistic versioning reject stale writes. A token
// refresh always ends with the new token persisted.
package service
