package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/marmos91/dittowopi/internal/logger"
)

// Operation names used for metrics and logs.
const (
	opCheckFileInfo = "CheckFileInfo"
	opGetFile       = "GetFile"
	opPutFile       = "PutFile"
	opGrantAccess   = "GrantAccess"
	opRevokeAccess  = "RevokeAccess"
)

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(escapedRoutePath)
	if h.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Get("/", h.handleRoot)
	r.Get("/healthz", h.handleHealth)

	r.Get("/access", h.instrument(opGrantAccess, h.handleGrantAccess))
	r.Delete("/access", h.instrument(opRevokeAccess, h.handleRevokeAccess))

	r.Route("/wopi/files/{fileId}", func(r chi.Router) {
		r.Use(h.authorize)
		r.Get("/", h.instrument(opCheckFileInfo, h.handleCheckFileInfo))
		r.Get("/contents", h.instrument(opGetFile, h.handleGetFile))
		r.Post("/contents", h.instrument(opPutFile, h.handlePutFile))
	})

	return r
}

// escapedRoutePath routes on the escaped path. Without it chi matches on the
// decoded path whenever Go leaves RawPath empty, and a key containing "%"
// would be decoded twice.
func escapedRoutePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			rctx.RoutePath = r.URL.EscapedPath()
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	storageKeyKey
)

// requestID tags each request with a uuid, echoed as X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestLog returns a logger entry tagged with the request id.
func requestLog(r *http.Request) *logger.Entry {
	return logger.WithFields(logger.Fields{"request_id": RequestID(r.Context())})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !logger.IsDebugEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.WithFields(logger.Fields{
				"request_id": RequestID(r.Context()),
				"remote":     r.RemoteAddr,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).Round(time.Microsecond),
			}).Debug("%s %s", r.Method, r.URL.EscapedPath())
		}()
		next.ServeHTTP(ww, r)
	})
}

// instrument records in-flight, count and latency for one operation.
func (h *Handler) instrument(op string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		h.metrics.RecordRequestStart(op)
		defer func() {
			h.metrics.RecordRequestEnd(op)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			h.metrics.RecordRequest(op, status, time.Since(start))
		}()

		fn(ww, r)
	}
}
