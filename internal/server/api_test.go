package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/service"
)

type fakeFacade struct {
	connected   map[integration.AppType]bool
	callbackErr error
	lastReq     service.CallbackRequest
	selected    []string
	listErr     error
	disconnects int
}

func (f *fakeFacade) ListUserIntegrations(context.Context, string) ([]integration.IntegrationSummary, error) {
	return integration.Summaries(f.connected), nil
}

func (f *fakeFacade) IsConnected(_ context.Context, _ string, appType integration.AppType) (bool, error) {
	return f.connected[appType], nil
}

func (f *fakeFacade) Connect(_ context.Context, userID string, appType integration.AppType) (string, error) {
	return "https://accounts.example.com/auth?app=" + string(appType) + "&u=" + userID, nil
}

func (f *fakeFacade) HandleOAuthCallback(_ context.Context, req service.CallbackRequest) (*integration.Integration, error) {
	f.lastReq = req
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return &integration.Integration{AppType: integration.AppGoogleMeetAndCalendar}, nil
}

func (f *fakeFacade) ListCalendars(context.Context, string, integration.AppType) ([]integration.CalendarSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []integration.CalendarSummary{{ID: "primary", Summary: "Me", Selected: true}}, nil
}

func (f *fakeFacade) SaveSelectedCalendars(_ context.Context, _ string, _ integration.AppType, ids []string) error {
	f.selected = ids
	return nil
}

func (f *fakeFacade) Disconnect(_ context.Context, _ string, appType integration.AppType) error {
	if !f.connected[appType] {
		return integration.NotFound(appType)
	}
	f.disconnects++
	return nil
}

func newTestAPI(f *fakeFacade) http.Handler {
	mux := http.NewServeMux()
	NewAPI(f, "https://app.example.com/integrations", nil).Register(mux)
	return userContext(mux)
}

func do(t *testing.T, h http.Handler, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAPI_RequiresUser(t *testing.T) {
	h := newTestAPI(&fakeFacade{})

	rec := do(t, h, http.MethodGet, "/api/integration/all", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
}

func TestAPI_ListIntegrations(t *testing.T) {
	h := newTestAPI(&fakeFacade{connected: map[integration.AppType]bool{integration.AppZoomMeeting: true}})

	rec := do(t, h, http.MethodGet, "/api/integration/all", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Fetched user integrations successfully", body["message"])
	items := body["integrations"].([]any)
	assert.Len(t, items, len(integration.AllAppTypes()))
	zoom := items[1].(map[string]any)
	assert.Equal(t, "ZOOM_MEETING", zoom["app_type"])
	assert.Equal(t, true, zoom["isConnected"])
}

func TestAPI_CheckAndConnect(t *testing.T) {
	h := newTestAPI(&fakeFacade{connected: map[integration.AppType]bool{integration.AppOutlookCalendar: true}})

	rec := do(t, h, http.MethodGet, "/api/integration/check/OUTLOOK_CALENDAR", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["isConnected"])

	rec = do(t, h, http.MethodGet, "/api/integration/connect/MICROSOFT_TEAMS", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["url"], "app=MICROSOFT_TEAMS")
}

func TestAPI_UnsupportedAppType(t *testing.T) {
	h := newTestAPI(&fakeFacade{})

	for _, target := range []string{
		"/api/integration/check/FAX",
		"/api/integration/connect/FAX",
		"/api/integration/calendars/FAX",
	} {
		t.Run(target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, target, "user-1", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "UNSUPPORTED_APP_TYPE", body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAPI_ListCalendars(t *testing.T) {
	f := &fakeFacade{}
	h := newTestAPI(f)

	rec := do(t, h, http.MethodGet, "/api/integration/calendars/GOOGLE_MEET_AND_CALENDAR", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cals := decode(t, rec)["calendars"].([]any)
	require.Len(t, cals, 1)
	assert.Equal(t, map[string]any{"id": "primary", "summary": "Me", "selected": true}, cals[0])

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: integration.NotFound(integration.AppGoogleMeetAndCalendar), wantStatus: http.StatusNotFound, wantCode: "INTEGRATION_NOT_FOUND"},
		{err: integration.NewError(integration.CodeTokenRefreshFailed, "Failed to refresh Google token", nil), wantStatus: http.StatusBadGateway, wantCode: "TOKEN_REFRESH_FAILED"},
		{err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			f.listErr = tt.err
			rec := do(t, h, http.MethodGet, "/api/integration/calendars/GOOGLE_MEET_AND_CALENDAR", "user-1", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotContains(t, body["message"], "disk")
		})
	}
}

func TestAPI_SaveSelectedCalendars(t *testing.T) {
	f := &fakeFacade{}
	h := newTestAPI(f)

	rec := do(t, h, http.MethodPost, "/api/integration/calendars/OUTLOOK_CALENDAR/select", "user-1", `{"ids":["a","b"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, []string{"a", "b"}, f.selected)

	rec = do(t, h, http.MethodPost, "/api/integration/calendars/OUTLOOK_CALENDAR/select", "user-1", `{"ids":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{}, f.selected)

	for name, body := range map[string]string{
		"missing ids": `{}`,
		"not json":    `ids=a`,
		"wrong type":  `{"ids":"a"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/integration/calendars/OUTLOOK_CALENDAR/select", "user-1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec = do(t, h, http.MethodPost, "/api/integration/calendars/FAX/select", "user-1", `{"ids":["a"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Disconnect(t *testing.T) {
	f := &fakeFacade{connected: map[integration.AppType]bool{integration.AppZoomMeeting: true}}
	h := newTestAPI(f)

	rec := do(t, h, http.MethodDelete, "/api/integration/ZOOM_MEETING", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.disconnects)

	rec = do(t, h, http.MethodDelete, "/api/integration/OUTLOOK_CALENDAR", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CallbackRedirects(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		err         error
		wantApp     string
		wantSuccess bool
		wantError   string
		wantProv    integration.Provider
	}{
		{name: "google success", path: "/api/integration/google/callback?code=c&state=s", wantApp: "google", wantSuccess: true, wantProv: integration.ProviderGoogle},
		{name: "zoom success", path: "/api/integration/zoom/callback?code=c&state=s", wantApp: "zoom", wantSuccess: true, wantProv: integration.ProviderZoom},
		{
			name:      "microsoft missing state",
			path:      "/api/integration/microsoft/callback?code=c",
			err:       integration.NewError(integration.CodeInvalidState, "Invalid state parameter", nil),
			wantApp:   "microsoft",
			wantError: "Invalid state parameter",
			wantProv:  integration.ProviderMicrosoft,
		},
		{
			name:      "duplicate",
			path:      "/api/integration/google/callback?code=c&state=s",
			err:       integration.Duplicate(integration.AppGoogleMeetAndCalendar),
			wantApp:   "google",
			wantError: "GOOGLE_MEET_AND_CALENDAR already connected",
			wantProv:  integration.ProviderGoogle,
		},
		{
			name:      "internal error is not leaked",
			path:      "/api/integration/zoom/callback?code=c&state=s",
			err:       errors.New("pq: connection refused"),
			wantApp:   "zoom",
			wantError: "Internal server error",
			wantProv:  integration.ProviderZoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFacade{callbackErr: tt.err}
			h := newTestAPI(f)

			// Callbacks arrive from the provider redirect without the user header.
			rec := do(t, h, http.MethodGet, tt.path, "", "")
			require.Equal(t, http.StatusFound, rec.Code)
			assert.NotContains(t, rec.Header().Get("Content-Type"), "json")
			assert.Equal(t, tt.wantProv, f.lastReq.Provider)

			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "app.example.com", loc.Host)
			assert.Equal(t, "/integrations", loc.Path)
			q := loc.Query()
			assert.Equal(t, tt.wantApp, q.Get("app_type"))
			if tt.wantSuccess {
				assert.Equal(t, "true", q.Get("success"))
				assert.Empty(t, q.Get("error"))
			} else {
				assert.Equal(t, tt.wantError, q.Get("error"))
				assert.Empty(t, q.Get("success"))
			}
		})
	}
}

func TestValidateRedirectTarget(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "https", raw: "https://app.example.com/integrations"},
		{name: "http localhost", raw: "http://localhost:3000/integrations"},
		{name: "http ipv6 loopback", raw: "http://[::1]:3000"},
		{name: "http remote host", raw: "http://app.example.com", wantErr: true},
		{name: "localhost substring", raw: "http://localhost.example.com", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "relative", raw: "/integrations", wantErr: true},
		{name: "https without host", raw: "https:///x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRedirectTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
