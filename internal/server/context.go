package server

import (
	"context"
	"sync"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/service"
)

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerContext holds the dependencies shared by the HTTP API and MCP tools.
type ServerContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	service *service.Service
	pinger  Pinger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	// defaultUserID is used by stdio MCP sessions, which carry no user header.
	defaultUserID string

	mu       sync.RWMutex
	shutdown bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithPinger enables the database readiness check.
func WithPinger(p Pinger) ContextOption {
	return func(sc *ServerContext) { sc.pinger = p }
}

// WithInstrumentation attaches metrics and audit logging.
func WithInstrumentation(m *instrumentation.Metrics, a *instrumentation.AuditLogger) ContextOption {
	return func(sc *ServerContext) {
		sc.metrics = m
		sc.audit = a
	}
}

// WithDefaultUserID sets the user for requests that do not name one.
func WithDefaultUserID(userID string) ContextOption {
	return func(sc *ServerContext) { sc.defaultUserID = userID }
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, svc *service.Service, opts ...ContextOption) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		service: svc,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Service returns the integration facade.
func (sc *ServerContext) Service() *service.Service {
	return sc.service
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// DefaultUserID returns the fallback user id, or "".
func (sc *ServerContext) DefaultUserID() string {
	return sc.defaultUserID
}

// Ping checks the store, if one was configured.
func (sc *ServerContext) Ping(ctx context.Context) error {
	if sc.pinger == nil {
		return nil
	}
	return sc.pinger.Ping(ctx)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}

type userIDKey struct{}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
