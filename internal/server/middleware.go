package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/teemow/calconnect/internal/instrumentation"
)

// UserIDHeader carries the id of the user authenticated by the calling application.
const UserIDHeader = "X-User-ID"

// userHandler is a handler for routes that act on behalf of a user.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// requireUser rejects requests without a user id with 401.
func requireUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized", Code: codeUnauthorized})
			return
		}
		next(w, r, userID)
	})
}

// userContext copies the user id header into the request context.
func userContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Flush keeps streaming responses working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// recordRequests records one metric per request labelled with the matched route pattern.
func recordRequests(metrics *instrumentation.Metrics, mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, time.Since(start))
	})
}
