package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/oauth"
	"github.com/teemow/calconnect/internal/state"
	"github.com/teemow/calconnect/internal/store"
)

// TokenEngine is the part of the OAuth engine the facade uses.
type TokenEngine interface {
	AuthorizationURL(userID string, appType integration.AppType) (string, error)
	Exchange(ctx context.Context, appType integration.AppType, code string) (oauth.Token, error)
	EnsureValidToken(ctx context.Context, appType integration.AppType, accessToken, refreshToken string, expiry *int64) (oauth.Token, bool, error)
}

// CalendarLister normalizes a provider's calendar list.
type CalendarLister interface {
	ListCalendars(ctx context.Context, in *integration.Integration, accessToken string) ([]integration.CalendarSummary, error)
}

// StateDecoder reads the state parameter of a callback. Decode never fails;
// an invalid token yields an empty payload.
type StateDecoder interface {
	Decode(token string) state.Payload
}

// Service is the integration facade.
type Service struct {
	engine    TokenEngine
	store     store.Store
	calendars CalendarLister
	states    StateDecoder
	locks     store.Locker
	audit     *instrumentation.AuditLogger
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger records user initiated changes.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates the facade.
func New(engine TokenEngine, st store.Store, calendars CalendarLister, states StateDecoder, opts ...Option) *Service {
	s := &Service{
		engine:    engine,
		store:     st,
		calendars: calendars,
		states:    states,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "service")
	return s
}

// ListUserIntegrations returns the full catalog, one entry per app type,
// with the user's connection status.
func (s *Service) ListUserIntegrations(ctx context.Context, userID string) ([]integration.IntegrationSummary, error) {
	rows, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	connected := make(map[integration.AppType]bool, len(rows))
	for _, row := range rows {
		connected[row.AppType] = true
	}
	return integration.Summaries(connected), nil
}

// IsConnected reports whether the user has an integration for appType.
func (s *Service) IsConnected(ctx context.Context, userID string, appType integration.AppType) (bool, error) {
	if _, err := integration.ProviderFor(appType); err != nil {
		return false, err
	}
	in, err := s.store.Find(ctx, userID, appType)
	if err != nil {
		return false, fmt.Errorf("find integration: %w", err)
	}
	return in != nil, nil
}

// Connect returns the provider consent URL for appType.
func (s *Service) Connect(ctx context.Context, userID string, appType integration.AppType) (string, error) {
	start := time.Now()
	url, err := s.engine.AuthorizationURL(userID, appType)
	s.audit.Log(ctx, instrumentation.AuditEvent{
		Action: "connect", UserID: userID, AppType: string(appType), Duration: time.Since(start), Err: err,
	})
	return url, err
}

// ListCalendars returns the user's calendars for appType. An expired token
// is refreshed and persisted before the provider is called.
func (s *Service) ListCalendars(ctx context.Context, userID string, appType integration.AppType) ([]integration.CalendarSummary, error) {
	p, err := integration.ProviderFor(appType)
	if err != nil {
		return nil, err
	}
	in, err := s.find(ctx, userID, appType)
	if err != nil {
		return nil, err
	}
	// Zoom has no calendars, so its token is not touched.
	if p == integration.ProviderZoom {
		return []integration.CalendarSummary{}, nil
	}

	tok, refreshed, err := s.engine.EnsureValidToken(ctx, appType, in.AccessToken, in.RefreshToken, in.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if refreshed {
		if in, err = s.persistRefresh(ctx, userID, appType, tok); err != nil {
			return nil, err
		}
	}
	return s.calendars.ListCalendars(ctx, in, tok.AccessToken)
}

// SaveSelectedCalendars replaces the stored calendar selection. Other
// metadata keys are preserved. The ids are not checked against the provider.
func (s *Service) SaveSelectedCalendars(ctx context.Context, userID string, appType integration.AppType, ids []string) error {
	if _, err := integration.ProviderFor(appType); err != nil {
		return err
	}
	start := time.Now()
	err := s.locks.WithLock(ctx, userID, appType, func(ctx context.Context) error {
		in, err := s.find(ctx, userID, appType)
		if err != nil {
			return err
		}
		in.Metadata = in.Metadata.WithSelectedCalendarIDs(ids)
		if err := s.store.Save(ctx, in); err != nil {
			return fmt.Errorf("save calendar selection: %w", err)
		}
		return nil
	})
	s.audit.Log(ctx, instrumentation.AuditEvent{
		Action: "select_calendars", UserID: userID, AppType: string(appType), Duration: time.Since(start), Err: err,
	})
	return err
}

// Disconnect removes the user's integration for appType. Provider-side
// grants are left in place.
func (s *Service) Disconnect(ctx context.Context, userID string, appType integration.AppType) error {
	if _, err := integration.ProviderFor(appType); err != nil {
		return err
	}
	start := time.Now()
	err := s.locks.WithLock(ctx, userID, appType, func(ctx context.Context) error {
		return s.store.Delete(ctx, userID, appType)
	})
	s.audit.Log(ctx, instrumentation.AuditEvent{
		Action: "disconnect", UserID: userID, AppType: string(appType), Duration: time.Since(start), Err: err,
	})
	return err
}

func (s *Service) find(ctx context.Context, userID string, appType integration.AppType) (*integration.Integration, error) {
	in, err := s.store.Find(ctx, userID, appType)
	if err != nil {
		return nil, fmt.Errorf("find integration: %w", err)
	}
	if in == nil {
		return nil, integration.NotFound(appType)
	}
	return in, nil
}

// persistRefresh writes a refreshed token back under the row lock. The row is
// re-read so a concurrent selection save is not overwritten. One version
// conflict is retried; the refreshed token stays valid either way.
func (s *Service) persistRefresh(ctx context.Context, userID string, appType integration.AppType, tok oauth.Token) (*integration.Integration, error) {
	var out *integration.Integration
	err := s.locks.WithLock(ctx, userID, appType, func(ctx context.Context) error {
		var err error
		for attempt := 0; attempt < 2; attempt++ {
			var cur *integration.Integration
			cur, err = s.find(ctx, userID, appType)
			if err != nil {
				return err
			}
			cur.AccessToken = tok.AccessToken
			cur.ExpiryDate = tok.ExpiryEpochMs
			if tok.RefreshToken != "" {
				cur.RefreshToken = tok.RefreshToken
			}
			err = s.store.Save(ctx, cur)
			if err == nil {
				out = cur
				return nil
			}
			if !errors.Is(err, store.ErrConcurrentModification) {
				break
			}
			s.logger.DebugContext(ctx, "retrying refreshed token write", logging.AppType(appType))
		}
		return fmt.Errorf("persist refreshed token: %w", err)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "refreshed token not persisted", logging.AppType(appType), logging.Err(err))
		return nil, err
	}
	s.audit.Log(ctx, instrumentation.AuditEvent{Action: "token_refresh", UserID: userID, AppType: string(appType)})
	return out, nil
}
