package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/state"
)

type tokenRequest struct {
	form       url.Values
	basicUser  string
	basicPass  string
	basicFound bool
}

type fakeTokenServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []tokenRequest
	calls    int32
	status   int
	response map[string]any
	delay    time.Duration
}

func newFakeTokenServer(t *testing.T) *fakeTokenServer {
	f := &fakeTokenServer{
		status: http.StatusOK,
		response: map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
			"token_type":    "Bearer",
			"scope":         "calendar",
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		_ = r.ParseForm()
		user, pass, ok := r.BasicAuth()
		f.mu.Lock()
		f.requests = append(f.requests, tokenRequest{form: r.PostForm, basicUser: user, basicPass: pass, basicFound: ok})
		status, resp, delay := f.status, f.response, f.delay
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeTokenServer) lastRequest(t *testing.T) tokenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestEngine(t *testing.T, tokenURL string, opts ...Option) (*Engine, *state.Codec) {
	t.Helper()
	creds := func(id string) integration.Credentials {
		return integration.Credentials{
			ClientID:     id,
			ClientSecret: id + "-secret",
			RedirectURI:  "http://localhost:8000/api/integration/callback",
			TokenURL:     tokenURL,
		}
	}
	reg, err := integration.NewRegistry(map[integration.Provider]integration.Credentials{
		integration.ProviderGoogle:    creds("google"),
		integration.ProviderZoom:      creds("zoom"),
		integration.ProviderMicrosoft: creds("ms"),
	})
	require.NoError(t, err)
	codec, err := state.NewCodec([]byte("engine-test-secret"))
	require.NoError(t, err)
	return NewEngine(reg, codec, opts...), codec
}

func TestAuthorizationURL(t *testing.T) {
	e, codec := newTestEngine(t, "http://unused/token")

	tests := []struct {
		appType    integration.AppType
		host       string
		clientID   string
		wantParams map[string]string
		noParams   []string
	}{
		{
			appType:  integration.AppGoogleMeetAndCalendar,
			host:     "accounts.google.com",
			clientID: "google",
			wantParams: map[string]string{
				"access_type":            "offline",
				"prompt":                 "consent",
				"include_granted_scopes": "true",
				"response_type":          "code",
				"scope":                  "https://www.googleapis.com/auth/calendar.events https://www.googleapis.com/auth/calendar.readonly",
			},
		},
		{
			appType:    integration.AppZoomMeeting,
			host:       "zoom.us",
			clientID:   "zoom",
			wantParams: map[string]string{"response_type": "code"},
			noParams:   []string{"scope", "access_type"},
		},
		{
			appType:  integration.AppMicrosoftTeams,
			host:     "login.microsoftonline.com",
			clientID: "ms",
			wantParams: map[string]string{
				"response_type": "code",
				"scope":         "offline_access User.Read Calendars.ReadWrite OnlineMeetings.ReadWrite",
			},
			noParams: []string{"access_type"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.appType), func(t *testing.T) {
			raw, err := e.AuthorizationURL("user-1", tt.appType)
			require.NoError(t, err)
			u, err := url.Parse(raw)
			require.NoError(t, err)

			assert.Equal(t, tt.host, u.Host)
			q := u.Query()
			assert.Equal(t, tt.clientID, q.Get("client_id"))
			assert.Equal(t, "http://localhost:8000/api/integration/callback", q.Get("redirect_uri"))
			for k, v := range tt.wantParams {
				assert.Equal(t, v, q.Get(k), k)
			}
			for _, k := range tt.noParams {
				assert.False(t, q.Has(k), k)
			}

			payload := codec.Decode(q.Get("state"))
			assert.Equal(t, state.Payload{UserID: "user-1", AppType: tt.appType}, payload)
		})
	}

	_, err := e.AuthorizationURL("user-1", "SLACK")
	assert.ErrorIs(t, err, integration.ErrUnsupportedAppType)
}

func TestExchange(t *testing.T) {
	srv := newFakeTokenServer(t)
	e, _ := newTestEngine(t, srv.URL)

	t.Run("zoom uses basic auth", func(t *testing.T) {
		tok, err := e.Exchange(context.Background(), integration.AppZoomMeeting, "the-code")
		require.NoError(t, err)
		assert.Equal(t, "new-access", tok.AccessToken)
		assert.Equal(t, "new-refresh", tok.RefreshToken)
		require.NotNil(t, tok.ExpiryEpochMs)
		assert.InDelta(t, time.Now().Add(time.Hour).UnixMilli(), *tok.ExpiryEpochMs, float64(time.Minute.Milliseconds()))

		req := srv.lastRequest(t)
		assert.True(t, req.basicFound)
		assert.Equal(t, "zoom", req.basicUser)
		assert.Equal(t, "zoom-secret", req.basicPass)
		assert.Equal(t, "authorization_code", req.form.Get("grant_type"))
		assert.Equal(t, "the-code", req.form.Get("code"))
		assert.Equal(t, "http://localhost:8000/api/integration/callback", req.form.Get("redirect_uri"))
		assert.Empty(t, req.form.Get("client_secret"))
	})

	t.Run("microsoft sends credentials and scope in body", func(t *testing.T) {
		_, err := e.Exchange(context.Background(), integration.AppOutlookCalendar, "ms-code")
		require.NoError(t, err)

		req := srv.lastRequest(t)
		assert.False(t, req.basicFound)
		assert.Equal(t, "ms", req.form.Get("client_id"))
		assert.Equal(t, "ms-secret", req.form.Get("client_secret"))
		assert.Equal(t, "offline_access User.Read Calendars.ReadWrite OnlineMeetings.ReadWrite", req.form.Get("scope"))
	})

	t.Run("google returns scope and token type", func(t *testing.T) {
		tok, err := e.Exchange(context.Background(), integration.AppGoogleMeetAndCalendar, "g-code")
		require.NoError(t, err)
		assert.Equal(t, "calendar", tok.Scope)
		assert.Equal(t, "Bearer", tok.TokenType)
	})
}

func TestExchangeFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response map[string]any
	}{
		{name: "non-2xx", status: http.StatusBadRequest, response: map[string]any{"error": "invalid_grant"}},
		{name: "missing access token", status: http.StatusOK, response: map[string]any{"token_type": "Bearer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeTokenServer(t)
			srv.status, srv.response = tt.status, tt.response
			e, _ := newTestEngine(t, srv.URL)

			_, err := e.Exchange(context.Background(), integration.AppZoomMeeting, "code")
			assert.ErrorIs(t, err, integration.ErrTokenExchangeFailed)
			assert.Equal(t, "Failed to get token", integration.MessageFor(err))
		})
	}

	t.Run("timeout", func(t *testing.T) {
		srv := newFakeTokenServer(t)
		srv.delay = 200 * time.Millisecond
		e, _ := newTestEngine(t, srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))

		_, err := e.Exchange(context.Background(), integration.AppZoomMeeting, "code")
		assert.ErrorIs(t, err, integration.ErrTokenExchangeFailed)
	})
}

func TestEnsureValidTokenNoNetworkWhenFresh(t *testing.T) {
	srv := newFakeTokenServer(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, srv.URL, WithClock(func() time.Time { return now }))

	expiry := now.Add(time.Minute).UnixMilli()
	tok, refreshed, err := e.EnsureValidToken(context.Background(), integration.AppOutlookCalendar, "a", "r", &expiry)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(&srv.calls))
}

func TestEnsureValidTokenRefreshes(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second).UnixMilli()
	exact := now.UnixMilli()

	tests := []struct {
		name    string
		appType integration.AppType
		expiry  *int64
	}{
		{name: "google nil expiry", appType: integration.AppGoogleMeetAndCalendar, expiry: nil},
		{name: "zoom expired", appType: integration.AppZoomMeeting, expiry: &past},
		{name: "microsoft expires now", appType: integration.AppMicrosoftTeams, expiry: &exact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeTokenServer(t)
			e, _ := newTestEngine(t, srv.URL, WithClock(func() time.Time { return now }))

			tok, refreshed, err := e.EnsureValidToken(context.Background(), tt.appType, "old", "old-refresh", tt.expiry)
			require.NoError(t, err)
			assert.True(t, refreshed)
			assert.Equal(t, "new-access", tok.AccessToken)
			assert.Equal(t, "new-refresh", tok.RefreshToken)

			req := srv.lastRequest(t)
			assert.Equal(t, "refresh_token", req.form.Get("grant_type"))
			assert.Equal(t, "old-refresh", req.form.Get("refresh_token"))
		})
	}
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv := newFakeTokenServer(t)
	srv.response = map[string]any{"access_token": "rotated-access", "expires_in": 60, "token_type": "Bearer"}
	e, _ := newTestEngine(t, srv.URL)

	tok, err := e.Refresh(context.Background(), integration.AppGoogleMeetAndCalendar, "keep-me")
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", tok.AccessToken)
	assert.Equal(t, "keep-me", tok.RefreshToken)
}

func TestRefreshFailures(t *testing.T) {
	t.Run("missing refresh token", func(t *testing.T) {
		srv := newFakeTokenServer(t)
		e, _ := newTestEngine(t, srv.URL)
		_, _, err := e.EnsureValidToken(context.Background(), integration.AppZoomMeeting, "a", "", nil)
		assert.ErrorIs(t, err, integration.ErrTokenRefreshFailed)
		assert.Equal(t, int32(0), atomic.LoadInt32(&srv.calls))
	})

	messages := map[integration.AppType]string{
		integration.AppGoogleMeetAndCalendar: "Failed to refresh Google token",
		integration.AppZoomMeeting:           "Failed to refresh Zoom token",
		integration.AppOutlookCalendar:       "Failed to refresh Microsoft token",
	}
	for appType, msg := range messages {
		t.Run(string(appType), func(t *testing.T) {
			srv := newFakeTokenServer(t)
			srv.status, srv.response = http.StatusUnauthorized, map[string]any{"error": "invalid_grant"}
			e, _ := newTestEngine(t, srv.URL)

			_, _, err := e.EnsureValidToken(context.Background(), appType, "a", "r", nil)
			assert.ErrorIs(t, err, integration.ErrTokenRefreshFailed)
			assert.Equal(t, msg, integration.MessageFor(err))
		})
	}
}

func TestConcurrentRefreshesAreCollapsed(t *testing.T) {
	srv := newFakeTokenServer(t)
	srv.delay = 100 * time.Millisecond
	e, _ := newTestEngine(t, srv.URL)

	var wg sync.WaitGroup
	results := make([]Token, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Refresh(context.Background(), integration.AppZoomMeeting, "same-refresh")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", results[i].AccessToken)
	}
	assert.Less(t, atomic.LoadInt32(&srv.calls), int32(5))
}

func TestRefreshSurvivesFirstCallerCancel(t *testing.T) {
	srv := newFakeTokenServer(t)
	srv.delay = 300 * time.Millisecond
	e, _ := newTestEngine(t, srv.URL)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Refresh(firstCtx, integration.AppOutlookCalendar, "shared-refresh")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&srv.calls) == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		tok Token
		err error
	}
	second := make(chan result, 1)
	go func() {
		tok, err := e.Refresh(context.Background(), integration.AppOutlookCalendar, "shared-refresh")
		second <- result{tok, err}
	}()
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	assert.ErrorIs(t, <-firstErr, context.Canceled)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "new-access", res.tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.calls))
}

func TestTokenExpired(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	before, at, after := int64(999_999), int64(1_000_000), int64(1_000_001)

	assert.True(t, Token{}.Expired(now))
	assert.True(t, Token{ExpiryEpochMs: &before}.Expired(now))
	assert.True(t, Token{ExpiryEpochMs: &at}.Expired(now))
	assert.False(t, Token{ExpiryEpochMs: &after}.Expired(now))
}
