package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calconnect/internal/integration"
)

func baseVars() map[string]string {
	return map[string]string{
		"CALCONNECT_STATE_SECRET": "0123456789abcdef0123",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(baseVars())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "memory://", cfg.DatabaseURL)
	assert.Equal(t, 15*time.Minute, cfg.StateTTL)
	assert.Equal(t, 10*time.Second, cfg.OAuthHTTPTimeout)
	assert.Equal(t, "https://graph.microsoft.com", cfg.GraphBaseURL)
	assert.ElementsMatch(t, []integration.Provider{
		integration.ProviderGoogle, integration.ProviderZoom, integration.ProviderMicrosoft,
	}, cfg.UnconfiguredProviders())
}

func TestLoadFrom_Providers(t *testing.T) {
	vars := baseVars()
	vars["GOOGLE_CLIENT_ID"] = "g-id"
	vars["GOOGLE_CLIENT_SECRET"] = "g-secret"
	vars["GOOGLE_REDIRECT_URI"] = "https://app.example.com/api/integration/google/callback"
	vars["ZOOM_CLIENT_ID"] = "z-id"
	vars["MS_CLIENT_ID"] = "m-id"
	vars["MS_SCOPES"] = "offline_access,Calendars.Read"
	vars["MS_TOKEN_URL"] = "https://login.example.com/token"

	cfg, err := LoadFrom(vars)
	require.NoError(t, err)
	assert.Empty(t, cfg.UnconfiguredProviders())

	creds := cfg.Credentials()
	assert.Equal(t, "g-id", creds[integration.ProviderGoogle].ClientID)
	assert.Equal(t, "g-secret", creds[integration.ProviderGoogle].ClientSecret)
	assert.Equal(t, "z-id", creds[integration.ProviderZoom].ClientID)
	assert.Equal(t, []string{"offline_access", "Calendars.Read"}, creds[integration.ProviderMicrosoft].Scopes)

	reg, err := integration.NewRegistry(creds)
	require.NoError(t, err)
	ep, err := reg.EndpointFor(integration.AppMicrosoftTeams)
	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com/token", ep.TokenURL)
	assert.Equal(t, "m-id", ep.ClientID)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{name: "missing secret", vars: map[string]string{}, wantErr: "CALCONNECT_STATE_SECRET is required"},
		{name: "short secret", vars: map[string]string{"CALCONNECT_STATE_SECRET": "short"}, wantErr: "at least 16 bytes"},
		{
			name:    "relative frontend url",
			vars:    map[string]string{"CALCONNECT_STATE_SECRET": "0123456789abcdef", "FRONTEND_INTEGRATION_URL": "/integrations"},
			wantErr: "FRONTEND_INTEGRATION_URL",
		},
		{
			name:    "bad duration",
			vars:    map[string]string{"CALCONNECT_STATE_SECRET": "0123456789abcdef", "CALCONNECT_STATE_TTL": "soon"},
			wantErr: "parse env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
