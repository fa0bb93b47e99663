package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/state"
)

// DefaultHTTPTimeout bounds every call to a token endpoint.
const DefaultHTTPTimeout = 10 * time.Second

// StateEncoder produces the opaque state parameter.
type StateEncoder interface {
	Encode(p state.Payload) (string, error)
}

// Engine runs authorization, exchange and refresh against provider endpoints.
type Engine struct {
	registry   *integration.Registry
	states     StateEncoder
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	now        func() time.Time
	refreshes  singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the default client. Its Timeout should be non-zero.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithMetrics records exchange and refresh outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(registry *integration.Registry, states StateEncoder, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		states:     states,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithComponent(e.logger, "oauth")
	return e
}

// AuthorizationURL returns the consent URL for appType with userID encoded in state.
func (e *Engine) AuthorizationURL(userID string, appType integration.AppType) (string, error) {
	ep, err := e.registry.EndpointFor(appType)
	if err != nil {
		return "", err
	}
	e.transition(context.Background(), ep.Provider, FlowInitiated)

	st, err := e.states.Encode(state.Payload{UserID: userID, AppType: appType})
	if err != nil {
		return "", integration.NewError(integration.CodeInvalidState, "Failed to encode state", err)
	}

	flow := flowFor(ep.Provider)
	url := oauth2Config(ep, flow).AuthCodeURL(st, flow.authCodeOptions(ep)...)
	e.transition(context.Background(), ep.Provider, FlowAuthorizing)
	return url, nil
}

// Exchange trades an authorization code for tokens.
func (e *Engine) Exchange(ctx context.Context, appType integration.AppType, code string) (Token, error) {
	ep, err := e.registry.EndpointFor(appType)
	if err != nil {
		return Token{}, err
	}
	e.transition(ctx, ep.Provider, FlowCallbackReceived)

	flow := flowFor(ep.Provider)
	ctx, span := instrumentation.StartProviderSpan(ctx, string(ep.Provider), instrumentation.OperationTokenExchange)
	start := time.Now()

	tok, err := oauth2Config(ep, flow).Exchange(e.clientContext(ctx), code, flow.exchangeOptions(ep)...)
	if err == nil && tok.AccessToken == "" {
		err = errMissingAccessToken
	}

	instrumentation.EndSpan(span, err)
	e.metrics.RecordProviderCall(ctx, string(ep.Provider), instrumentation.OperationTokenExchange,
		instrumentation.StatusOf(err), time.Since(start))
	e.metrics.RecordTokenExchange(ctx, string(ep.Provider), instrumentation.ResultOf(err))

	if err != nil {
		e.transition(ctx, ep.Provider, FlowFailed)
		e.logger.WarnContext(ctx, "token exchange failed",
			logging.AppType(appType), logging.Provider(ep.Provider), logging.Err(err))
		return Token{}, integration.NewError(integration.CodeTokenExchangeFailed, "Failed to get token", err)
	}

	e.transition(ctx, ep.Provider, FlowTokenExchanged)
	out := fromOAuth2(tok)
	e.logger.DebugContext(ctx, "token exchanged",
		logging.AppType(appType),
		slog.String("access_token", logging.SanitizeToken(out.AccessToken)),
		slog.Bool("has_refresh_token", out.RefreshToken != ""))
	return out, nil
}

func (e *Engine) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

func (e *Engine) transition(ctx context.Context, p integration.Provider, s FlowState) {
	e.metrics.RecordFlowTransition(ctx, string(p), string(s))
	e.logger.DebugContext(ctx, "oauth flow transition", logging.Provider(p), logging.FlowState(s))
}

func refreshKey(appType integration.AppType, refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return string(appType) + ":" + hex.EncodeToString(sum[:])
}
