package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// FlowState is the lifecycle position of one authorization attempt.
type FlowState string

const (
	FlowInitiated        FlowState = "INITIATED"
	FlowAuthorizing      FlowState = "AUTHORIZING"
	FlowCallbackReceived FlowState = "CALLBACK_RECEIVED"
	FlowTokenExchanged   FlowState = "TOKEN_EXCHANGED"
	FlowFailed           FlowState = "FAILED"
)

// Token is the provider-neutral result of an exchange or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	// ExpiryEpochMs is nil when the provider did not report a lifetime.
	ExpiryEpochMs *int64
	Scope         string
	TokenType     string
}

func fromOAuth2(t *oauth2.Token) Token {
	out := Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if !t.Expiry.IsZero() {
		ms := t.Expiry.UnixMilli()
		out.ExpiryEpochMs = &ms
	}
	if scope, ok := t.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

// Expired reports whether the token must be refreshed before use at now.
// An unknown expiry counts as expired.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiryEpochMs == nil || now.UnixMilli() >= *t.ExpiryEpochMs
}
