package service

import (
	"context"
	"fmt"
	"time"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/oauth"
)

// CallbackRequest carries the query parameters of a provider redirect.
type CallbackRequest struct {
	// Provider is fixed by the callback route.
	Provider integration.Provider
	Code     string
	State    string
}

// HandleOAuthCallback completes a connection: it validates the callback,
// exchanges the code and stores the new integration. An app type that is
// already connected is rejected before the code is spent.
func (s *Service) HandleOAuthCallback(ctx context.Context, req CallbackRequest) (*integration.Integration, error) {
	start := time.Now()
	in, err := s.handleCallback(ctx, req)

	ev := instrumentation.AuditEvent{Action: "connect_complete", Duration: time.Since(start), Err: err}
	if in != nil {
		ev.UserID, ev.AppType = in.UserID, string(in.AppType)
	}
	s.audit.Log(ctx, ev)
	return in, err
}

func (s *Service) handleCallback(ctx context.Context, req CallbackRequest) (*integration.Integration, error) {
	if req.Code == "" {
		return nil, integration.NewError(integration.CodeInvalidState, "Invalid authorization", nil)
	}
	if req.State == "" {
		return nil, integration.NewError(integration.CodeInvalidState, "Invalid state parameter", nil)
	}
	payload := s.states.Decode(req.State)
	if payload.UserID == "" {
		return nil, integration.NewError(integration.CodeInvalidState, "UserId is required", nil)
	}

	appType, err := callbackAppType(req.Provider, payload.AppType)
	if err != nil {
		return nil, err
	}
	logger := logging.WithAppType(s.logger, appType)

	var created *integration.Integration
	err = s.locks.WithLock(ctx, payload.UserID, appType, func(ctx context.Context) error {
		existing, err := s.store.Find(ctx, payload.UserID, appType)
		if err != nil {
			return fmt.Errorf("find integration: %w", err)
		}
		if existing != nil {
			return integration.Duplicate(appType)
		}

		tok, err := s.engine.Exchange(ctx, appType, req.Code)
		if err != nil {
			return err
		}

		in, err := newIntegration(payload.UserID, appType, tok)
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, in); err != nil {
			return err
		}
		created = in
		return nil
	})
	if err != nil {
		logger.InfoContext(ctx, "oauth callback rejected", logging.Err(err))
		return nil, err
	}
	logger.InfoContext(ctx, "integration connected", logging.UserHash(payload.UserID))
	return created, nil
}

// callbackAppType resolves the app type of a callback. Google and Zoom own one
// app type each; the Microsoft route serves both Outlook and Teams and relies
// on the app type carried in state.
func callbackAppType(p integration.Provider, fromState integration.AppType) (integration.AppType, error) {
	switch p {
	case integration.ProviderGoogle:
		return integration.AppGoogleMeetAndCalendar, nil
	case integration.ProviderZoom:
		return integration.AppZoomMeeting, nil
	case integration.ProviderMicrosoft:
		if integration.IsMicrosoft(fromState) {
			return fromState, nil
		}
		return integration.AppOutlookCalendar, nil
	default:
		return "", integration.NewError(integration.CodeUnsupportedAppType, "Unsupported provider", fmt.Errorf("provider %q", p))
	}
}

func newIntegration(userID string, appType integration.AppType, tok oauth.Token) (*integration.Integration, error) {
	p, err := integration.ProviderFor(appType)
	if err != nil {
		return nil, err
	}
	cat, err := integration.CategoryFor(appType)
	if err != nil {
		return nil, err
	}

	meta := integration.Metadata{}
	if p == integration.ProviderGoogle {
		meta[integration.MetaScope] = tok.Scope
		meta[integration.MetaTokenType] = tok.TokenType
	}

	return &integration.Integration{
		UserID:       userID,
		Provider:     p,
		Category:     cat,
		AppType:      appType,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiryDate:   tok.ExpiryEpochMs,
		Metadata:     meta,
		IsConnected:  true,
	}, nil
}
