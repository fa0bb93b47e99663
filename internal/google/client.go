package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// DefaultTimeout bounds each Google API request.
const DefaultTimeout = 15 * time.Second

// ClientOptions tune client construction. The zero value targets production.
type ClientOptions struct {
	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string
	// HTTPClient supplies the transport requests go through. Its Timeout is
	// used when Timeout is zero. Nil uses http.DefaultTransport.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewHTTPClient returns a client that sends accessToken as a Bearer token over
// the transport of base. The transport is shared, never copied, so idle
// connections are reused across calls.
func NewHTTPClient(accessToken string, base *http.Client, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport
	if base != nil {
		if base.Transport != nil {
			transport = base.Transport
		}
		if timeout <= 0 {
			timeout = base.Timeout
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: ts, Base: transport},
	}
}

// NewCalendarService creates a Calendar v3 service authenticated with accessToken.
func NewCalendarService(ctx context.Context, accessToken string, opts ClientOptions) (*calendar.Service, error) {
	clientOpts := []option.ClientOption{
		option.WithHTTPClient(NewHTTPClient(accessToken, opts.HTTPClient, opts.Timeout)),
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}
