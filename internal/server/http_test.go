package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calconnect/internal/calendar"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/oauth"
	"github.com/teemow/calconnect/internal/service"
	"github.com/teemow/calconnect/internal/state"
	"github.com/teemow/calconnect/internal/store"
)

func newTestServerContext(t *testing.T) *ServerContext {
	t.Helper()
	reg, err := integration.NewRegistry(map[integration.Provider]integration.Credentials{
		integration.ProviderGoogle: {ClientID: "g", ClientSecret: "gs", RedirectURI: "http://localhost/api/integration/google/callback"},
	})
	require.NoError(t, err)
	codec, err := state.NewCodec([]byte("server-test-secret"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	svc := service.New(oauth.NewEngine(reg, codec), st, calendar.NewAdapter(calendar.Config{}), codec)
	return NewServerContext(context.Background(), svc)
}

func TestNewHTTPServer(t *testing.T) {
	sc := newTestServerContext(t)

	_, err := NewHTTPServer(sc, Config{FrontendIntegrationURL: "http://evil.example.com"})
	assert.Error(t, err)

	_, err = NewHTTPServer(nil, Config{FrontendIntegrationURL: "https://app.example.com"})
	assert.Error(t, err)

	s, err := NewHTTPServer(sc, Config{FrontendIntegrationURL: "https://app.example.com/integrations"})
	require.NoError(t, err)
	assert.NotNil(t, s.Handler())
}

func TestHTTPServer_EndToEnd(t *testing.T) {
	s, err := NewHTTPServer(newTestServerContext(t), Config{
		FrontendIntegrationURL: "https://app.example.com/integrations",
		Version:                "test",
	})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/integration/connect/GOOGLE_MEET_AND_CALENDAR", nil)
	require.NoError(t, err)
	req.Header.Set(UserIDHeader, "user-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err = client.Get(srv.URL + "/api/integration/google/callback?code=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "error=Invalid+state+parameter")

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, s.Health().IsReady())
}
