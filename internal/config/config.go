package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/teemow/calconnect/internal/integration"
)

// ProviderEnv is the OAuth client configuration of one provider.
type ProviderEnv struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURI  string   `env:"REDIRECT_URI"`
	AuthURL      string   `env:"AUTH_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string `env:"CALCONNECT_HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"CALCONNECT_METRICS_ADDR" envDefault:":9090"`
	// DatabaseURL selects the store; see store.Open.
	DatabaseURL string `env:"CALCONNECT_DATABASE_URL" envDefault:"memory://"`

	StateSecret string        `env:"CALCONNECT_STATE_SECRET"`
	StateTTL    time.Duration `env:"CALCONNECT_STATE_TTL" envDefault:"15m"`

	// TokenEncryptionKey is a base64 encoded 32 byte key. Empty stores tokens in plaintext.
	TokenEncryptionKey string `env:"CALCONNECT_TOKEN_ENCRYPTION_KEY"`

	OAuthHTTPTimeout   time.Duration `env:"CALCONNECT_OAUTH_HTTP_TIMEOUT" envDefault:"10s"`
	ProviderAPITimeout time.Duration `env:"CALCONNECT_PROVIDER_API_TIMEOUT" envDefault:"15s"`

	FrontendIntegrationURL string `env:"FRONTEND_INTEGRATION_URL" envDefault:"http://localhost:3000/integrations"`

	// GoogleAPIEndpoint and GraphBaseURL are only overridden in tests and sandboxes.
	GoogleAPIEndpoint string `env:"CALCONNECT_GOOGLE_API_ENDPOINT"`
	GraphBaseURL      string `env:"CALCONNECT_GRAPH_BASE_URL" envDefault:"https://graph.microsoft.com"`

	Google    ProviderEnv `envPrefix:"GOOGLE_"`
	Zoom      ProviderEnv `envPrefix:"ZOOM_"`
	Microsoft ProviderEnv `envPrefix:"MS_"`
}

// Load reads Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads Config from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports configuration the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.StateSecret == "" {
		errs = append(errs, errors.New("CALCONNECT_STATE_SECRET is required"))
	} else if len(c.StateSecret) < 16 {
		errs = append(errs, errors.New("CALCONNECT_STATE_SECRET must be at least 16 bytes"))
	}
	if c.StateTTL <= 0 {
		errs = append(errs, errors.New("CALCONNECT_STATE_TTL must be positive"))
	}
	if c.OAuthHTTPTimeout <= 0 {
		errs = append(errs, errors.New("CALCONNECT_OAUTH_HTTP_TIMEOUT must be positive"))
	}
	if u, err := url.Parse(c.FrontendIntegrationURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("FRONTEND_INTEGRATION_URL %q is not an absolute URL", c.FrontendIntegrationURL))
	}
	return errors.Join(errs...)
}

// Credentials converts the provider sections into registry input.
func (c Config) Credentials() map[integration.Provider]integration.Credentials {
	conv := func(p ProviderEnv) integration.Credentials {
		return integration.Credentials{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURI:  p.RedirectURI,
			AuthURL:      p.AuthURL,
			TokenURL:     p.TokenURL,
			Scopes:       p.Scopes,
		}
	}
	return map[integration.Provider]integration.Credentials{
		integration.ProviderGoogle:    conv(c.Google),
		integration.ProviderZoom:      conv(c.Zoom),
		integration.ProviderMicrosoft: conv(c.Microsoft),
	}
}

// UnconfiguredProviders lists providers without a client id. The service
// still starts, but connecting such an app fails at the provider.
func (c Config) UnconfiguredProviders() []integration.Provider {
	var out []integration.Provider
	for _, p := range []struct {
		name integration.Provider
		env  ProviderEnv
	}{
		{integration.ProviderGoogle, c.Google},
		{integration.ProviderZoom, c.Zoom},
		{integration.ProviderMicrosoft, c.Microsoft},
	} {
		if p.env.ClientID == "" {
			out = append(out, p.name)
		}
	}
	return out
}
