package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scrapeforge/crawlcore/internal/logger"
)

// NewRouter builds the admin API's chi router.
//
// Routes:
//   - GET /health
//   - GET /queue/{id}/info
//   - GET /queue/{id}/state
//   - GET /list/{id}/state
//   - GET /session-pool/state
//   - GET /pool/status
//   - GET /system-status/current
//   - GET /system-status/historical
//   - GET /config/schema
func NewRouter(deps Dependencies) http.Handler {
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.health)
	r.Get("/queue/{id}/info", h.queueInfo)
	r.Get("/queue/{id}/state", h.queueState)
	r.Get("/list/{id}/state", h.listState)
	r.Get("/session-pool/state", h.sessionPoolState)
	r.Get("/pool/status", h.poolStatus)
	r.Get("/system-status/current", h.systemStatusCurrent)
	r.Get("/system-status/historical", h.systemStatusHistorical)
	r.Get("/config/schema", h.configSchema)

	return r
}

// requestLogger logs each request through internal/logger instead of chi's
// own stdlib-logger middleware, matching the rest of the runtime's logging.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("admin API request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
