package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthChecker(t *testing.T) {
	tests := []struct {
		name          string
		pingErr       error
		notReady      bool
		shutdown      bool
		wantReadyCode int
		wantDetailed  string
	}{
		{name: "healthy", wantReadyCode: http.StatusOK, wantDetailed: healthStatusOK},
		{name: "database down", pingErr: errors.New("refused"), wantReadyCode: http.StatusServiceUnavailable, wantDetailed: healthStatusNotReady},
		{name: "not ready", notReady: true, wantReadyCode: http.StatusServiceUnavailable, wantDetailed: healthStatusNotReady},
		{name: "shutting down", shutdown: true, wantReadyCode: http.StatusServiceUnavailable, wantDetailed: healthStatusShuttingDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewServerContext(context.Background(), nil, WithPinger(fakePinger{err: tt.pingErr}))
			if tt.shutdown {
				require.NoError(t, sc.Shutdown())
			}
			h := NewHealthChecker(sc, "1.2.3")
			h.SetReady(!tt.notReady)

			mux := http.NewServeMux()
			h.RegisterHealthEndpoints(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, http.StatusOK, rec.Code, "liveness never depends on dependencies")

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantReadyCode, rec.Code)
			var ready HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
			if tt.pingErr != nil {
				assert.Equal(t, healthStatusUnavailable, ready.Checks["database"])
			}

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
			var detailed DetailedHealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detailed))
			assert.Equal(t, tt.wantDetailed, detailed.Status)
			assert.Equal(t, "1.2.3", detailed.Version)
		})
	}
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), nil, WithDefaultUserID("local"))
	assert.False(t, sc.IsShutdown())
	assert.Equal(t, "local", sc.DefaultUserID())

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := UserIDFromContext(WithUserID(context.Background(), "user-1"))
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}
