// Package oauth implements the OAuth2 authorization code flow for every
// supported provider: building consent URLs, exchanging codes and refreshing
// expired access tokens.
//
// The engine is stateless apart from refresh de-duplication. It never writes
// to storage; callers persist whatever Exchange and EnsureValidToken return.
//
// Flow states:
//
//	INITIATED -> AUTHORIZING -> CALLBACK_RECEIVED -> TOKEN_EXCHANGED
//	                                              \-> FAILED
package oauth
