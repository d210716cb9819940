package server

import (
	"net/http"
	"time"

	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// responseRecorder wraps http.ResponseWriter to capture the status code.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// applyMiddleware wraps the mux with the middleware chain.
func applyMiddleware(mux http.Handler) http.Handler {
	// requestID must run first so the request log line carries the id.
	handler := requestLogger(mux)
	handler = requestID(handler)
	return handler
}

// requestID assigns each request an id, echoes it in the response and
// stores a logger carrying it in the request context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := logging.GetLogger().With("request_id", id)
		next.ServeHTTP(w, r.WithContext(logging.NewContext(r.Context(), logger)))
	})
}

// requestLogger logs method, path, status code, and duration for each request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)
		logging.FromContext(r.Context()).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rr.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}
