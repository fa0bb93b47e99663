package oauth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
)

var (
	errMissingAccessToken  = errors.New("token response has no access_token")
	errMissingRefreshToken = errors.New("no refresh token available")
)

// EnsureValidToken returns the stored token unchanged if it has not expired,
// without any network call. Otherwise it refreshes and reports refreshed=true;
// the caller must persist the result.
func (e *Engine) EnsureValidToken(ctx context.Context, appType integration.AppType, accessToken, refreshToken string, expiry *int64) (tok Token, refreshed bool, err error) {
	cur := Token{AccessToken: accessToken, RefreshToken: refreshToken, ExpiryEpochMs: expiry}
	if !cur.Expired(e.now()) {
		return cur, false, nil
	}
	tok, err = e.Refresh(ctx, appType, refreshToken)
	if err != nil {
		return Token{}, false, err
	}
	return tok, true, nil
}

// Refresh exchanges refreshToken for a new access token. Concurrent calls with
// the same refresh token share one request. A provider that does not rotate
// refresh tokens gets the old one carried over.
func (e *Engine) Refresh(ctx context.Context, appType integration.AppType, refreshToken string) (Token, error) {
	ep, err := e.registry.EndpointFor(appType)
	if err != nil {
		return Token{}, err
	}
	if refreshToken == "" {
		e.metrics.RecordTokenRefresh(ctx, string(ep.Provider), instrumentation.ResultFailure)
		return Token{}, refreshFailed(ep.Provider, errMissingRefreshToken)
	}

	// The shared refresh runs detached from any one caller, bounded by the
	// client timeout. Each caller stops waiting on its own context.
	ch := e.refreshes.DoChan(refreshKey(appType, refreshToken), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.refreshTimeout())
		defer cancel()
		return e.doRefresh(rctx, ep, refreshToken)
	})

	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		if res.Shared {
			e.logger.DebugContext(ctx, "joined in-flight refresh", logging.AppType(appType))
		}
		return res.Val.(Token), nil
	}
}

func (e *Engine) refreshTimeout() time.Duration {
	if e.httpClient.Timeout > 0 {
		return e.httpClient.Timeout
	}
	return DefaultHTTPTimeout
}

func (e *Engine) doRefresh(ctx context.Context, ep integration.Endpoint, refreshToken string) (Token, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, string(ep.Provider), instrumentation.OperationTokenRefresh)
	start := time.Now()

	// An empty access token is never Valid, so the source always hits the token endpoint.
	src := oauth2Config(ep, flowFor(ep.Provider)).TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err == nil && tok.AccessToken == "" {
		err = errMissingAccessToken
	}

	instrumentation.EndSpan(span, err)
	e.metrics.RecordProviderCall(ctx, string(ep.Provider), instrumentation.OperationTokenRefresh,
		instrumentation.StatusOf(err), time.Since(start))
	e.metrics.RecordTokenRefresh(ctx, string(ep.Provider), instrumentation.ResultOf(err))

	if err != nil {
		e.logger.WarnContext(ctx, "token refresh failed", logging.Provider(ep.Provider), logging.Err(err))
		return Token{}, refreshFailed(ep.Provider, err)
	}

	out := fromOAuth2(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	e.logger.DebugContext(ctx, "token refreshed", logging.Provider(ep.Provider),
		logging.Status(logging.StatusSuccess))
	return out, nil
}

func refreshFailed(p integration.Provider, err error) *integration.Error {
	msg := "Failed to refresh token"
	switch p {
	case integration.ProviderGoogle:
		msg = "Failed to refresh Google token"
	case integration.ProviderZoom:
		msg = "Failed to refresh Zoom token"
	case integration.ProviderMicrosoft:
		msg = "Failed to refresh Microsoft token"
	}
	return integration.NewError(integration.CodeTokenRefreshFailed, msg, err)
}
