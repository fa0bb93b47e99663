package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/service"
)

// maxSelectBody caps the calendar selection request body.
const maxSelectBody = 64 << 10

// Error codes that exist only at the HTTP boundary.
const (
	codeUnauthorized   = "UNAUTHORIZED"
	codeInvalidRequest = "INVALID_REQUEST"
	codeInternal       = "INTERNAL_ERROR"
)

// Facade is the integration service as used by the HTTP API.
type Facade interface {
	ListUserIntegrations(ctx context.Context, userID string) ([]integration.IntegrationSummary, error)
	IsConnected(ctx context.Context, userID string, appType integration.AppType) (bool, error)
	Connect(ctx context.Context, userID string, appType integration.AppType) (string, error)
	HandleOAuthCallback(ctx context.Context, req service.CallbackRequest) (*integration.Integration, error)
	ListCalendars(ctx context.Context, userID string, appType integration.AppType) ([]integration.CalendarSummary, error)
	SaveSelectedCalendars(ctx context.Context, userID string, appType integration.AppType, ids []string) error
	Disconnect(ctx context.Context, userID string, appType integration.AppType) error
}

// API implements the /api/integration routes.
type API struct {
	facade      Facade
	frontendURL string
	logger      *slog.Logger
}

// NewAPI creates the API. frontendURL is the redirect target of OAuth callbacks.
func NewAPI(facade Facade, frontendURL string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{facade: facade, frontendURL: frontendURL, logger: logging.WithComponent(logger, "api")}
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/integration/all", requireUser(a.listIntegrations))
	mux.Handle("GET /api/integration/check/{appType}", requireUser(a.checkIntegration))
	mux.Handle("GET /api/integration/connect/{appType}", requireUser(a.connect))
	mux.Handle("GET /api/integration/calendars/{appType}", requireUser(a.listCalendars))
	mux.Handle("POST /api/integration/calendars/{appType}/select", requireUser(a.saveSelectedCalendars))
	mux.Handle("DELETE /api/integration/{appType}", requireUser(a.disconnect))

	mux.Handle("GET /api/integration/google/callback", a.callback(integration.ProviderGoogle, "google"))
	mux.Handle("GET /api/integration/zoom/callback", a.callback(integration.ProviderZoom, "zoom"))
	mux.Handle("GET /api/integration/microsoft/callback", a.callback(integration.ProviderMicrosoft, "microsoft"))
}

func (a *API) listIntegrations(w http.ResponseWriter, r *http.Request, userID string) {
	summaries, err := a.facade.ListUserIntegrations(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Fetched user integrations successfully",
		"integrations": summaries,
	})
}

func (a *API) checkIntegration(w http.ResponseWriter, r *http.Request, userID string) {
	appType, ok := a.appType(w, r)
	if !ok {
		return
	}
	connected, err := a.facade.IsConnected(r.Context(), userID, appType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Integration checked successfully",
		"isConnected": connected,
	})
}

func (a *API) connect(w http.ResponseWriter, r *http.Request, userID string) {
	appType, ok := a.appType(w, r)
	if !ok {
		return
	}
	u, err := a.facade.Connect(r.Context(), userID, appType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (a *API) listCalendars(w http.ResponseWriter, r *http.Request, userID string) {
	appType, ok := a.appType(w, r)
	if !ok {
		return
	}
	calendars, err := a.facade.ListCalendars(r.Context(), userID, appType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendars": calendars})
}

type selectRequest struct {
	IDs *[]string `json:"ids"`
}

func (a *API) saveSelectedCalendars(w http.ResponseWriter, r *http.Request, userID string) {
	appType, ok := a.appType(w, r)
	if !ok {
		return
	}

	var body selectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSelectBody))
	if err := dec.Decode(&body); err != nil || body.IDs == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "ids must be an array of strings", Code: codeInvalidRequest})
		return
	}

	if err := a.facade.SaveSelectedCalendars(r.Context(), userID, appType, *body.IDs); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) disconnect(w http.ResponseWriter, r *http.Request, userID string) {
	appType, ok := a.appType(w, r)
	if !ok {
		return
	}
	if err := a.facade.Disconnect(r.Context(), userID, appType); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// callback handles a provider redirect. Outcomes are reported to the
// frontend through the redirect query, never as a JSON body.
func (a *API) callback(p integration.Provider, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_, err := a.facade.HandleOAuthCallback(r.Context(), service.CallbackRequest{
			Provider: p,
			Code:     q.Get("code"),
			State:    q.Get("state"),
		})
		if err != nil {
			a.logger.InfoContext(r.Context(), "oauth callback failed", logging.Provider(p), logging.Err(err))
		}
		http.Redirect(w, r, a.redirectURL(name, err), http.StatusFound)
	})
}

func (a *API) redirectURL(appName string, err error) string {
	u, perr := url.Parse(a.frontendURL)
	if perr != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("app_type", appName)
	if err != nil {
		q.Set("error", integration.MessageFor(err))
	} else {
		q.Set("success", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *API) appType(w http.ResponseWriter, r *http.Request) (integration.AppType, bool) {
	appType, err := integration.ParseAppType(r.PathValue("appType"))
	if err != nil {
		a.writeError(w, r, err)
		return "", false
	}
	return appType, true
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := integration.StatusFor(err)
	body := errorBody{Message: integration.MessageFor(err), Code: codeInternal}
	if e, ok := integration.AsError(err); ok {
		body.Code = string(e.Code)
	}

	if status >= http.StatusInternalServerError || errors.Is(err, integration.ErrProviderAPIFailure) {
		a.logger.ErrorContext(r.Context(), "request failed", slog.String("route", r.Pattern), logging.Err(err))
	} else {
		a.logger.DebugContext(r.Context(), "request rejected", slog.String("route", r.Pattern), logging.Err(err))
	}
	writeJSON(w, status, body)
}
