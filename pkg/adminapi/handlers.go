package adminapi

import (
	"github.com/go-chi/chi/v5"
	"net/http"

	"github.com/scrapeforge/crawlcore/pkg/autoscale"
	"github.com/scrapeforge/crawlcore/pkg/requestlist"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
	"github.com/scrapeforge/crawlcore/pkg/session"
	"github.com/scrapeforge/crawlcore/pkg/snapshot"
)

// Dependencies wires the admin API's read-only view onto a running
// runtime. Every field is optional: a nil lookup or collaborator makes its
// routes respond 404 instead of panicking, so a caller can mount the
// admin API before every component exists (e.g. during startup).
type Dependencies struct {
	// Queues looks up a RequestQueue by id.
	Queues func(id string) (*requestqueue.Queue, bool)

	// Lists looks up a RequestList by id.
	Lists func(id string) (*requestlist.List, bool)

	// SessionPool is the runtime's session pool, if any.
	SessionPool *session.Pool

	// AutoscaledPool is the runtime's scheduler, if any.
	AutoscaledPool *autoscale.Pool

	// SystemStatus reports current/historical overload verdicts, if any.
	SystemStatus *snapshot.SystemStatus

	// ConfigSchema returns the JSON Schema document for the runtime's
	// configuration, or an error if schema generation fails. Injected by
	// the caller (cmd/crawlcore) to avoid an import cycle with
	// internal/config.
	ConfigSchema func() ([]byte, error)
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"status": "healthy"})
}

func (h *handlers) queueInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.deps.Queues == nil {
		notFound(w, "no queues registered")
		return
	}
	q, found := h.deps.Queues(id)
	if !found {
		notFound(w, "queue not found: "+id)
		return
	}
	ok(w, q.GetInfo())
}

func (h *handlers) queueState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.deps.Queues == nil {
		notFound(w, "no queues registered")
		return
	}
	q, found := h.deps.Queues(id)
	if !found {
		notFound(w, "queue not found: "+id)
		return
	}
	isFinished, err := q.IsFinished(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w, map[string]interface{}{
		"info":       q.GetInfo(),
		"isFinished": isFinished,
	})
}

func (h *handlers) listState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.deps.Lists == nil {
		notFound(w, "no lists registered")
		return
	}
	l, found := h.deps.Lists(id)
	if !found {
		notFound(w, "list not found: "+id)
		return
	}
	ok(w, l.GetState())
}

func (h *handlers) sessionPoolState(w http.ResponseWriter, r *http.Request) {
	if h.deps.SessionPool == nil {
		notFound(w, "session pool not configured")
		return
	}
	ok(w, h.deps.SessionPool.GetState())
}

func (h *handlers) poolStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.AutoscaledPool == nil {
		notFound(w, "autoscaled pool not configured")
		return
	}
	ok(w, map[string]int{
		"desiredConcurrency": h.deps.AutoscaledPool.DesiredConcurrency(),
		"runningCount":       h.deps.AutoscaledPool.RunningCount(),
	})
}

func (h *handlers) systemStatusCurrent(w http.ResponseWriter, r *http.Request) {
	if h.deps.SystemStatus == nil {
		notFound(w, "system status not configured")
		return
	}
	ok(w, h.deps.SystemStatus.GetCurrentStatus())
}

func (h *handlers) systemStatusHistorical(w http.ResponseWriter, r *http.Request) {
	if h.deps.SystemStatus == nil {
		notFound(w, "system status not configured")
		return
	}
	ok(w, h.deps.SystemStatus.GetHistoricalStatus())
}

func (h *handlers) configSchema(w http.ResponseWriter, r *http.Request) {
	if h.deps.ConfigSchema == nil {
		notFound(w, "config schema generation not configured")
		return
	}
	schema, err := h.deps.ConfigSchema()
	if err != nil {
		serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schema)
}
