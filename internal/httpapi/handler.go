package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cmoses01/DyaGram/internal/discovery"
	"github.com/cmoses01/DyaGram/internal/discoveryworker"
	"github.com/cmoses01/DyaGram/internal/inventory"
	"github.com/cmoses01/DyaGram/internal/metrics"
	"github.com/cmoses01/DyaGram/internal/state"
	"github.com/cmoses01/DyaGram/internal/topology"
)

// Runs is the read side of the discovery engine.
type Runs interface {
	LastRun(site string) (discovery.Run, bool)
	Baseline(ctx context.Context, site string) (topology.Snapshot, bool, error)
	History(ctx context.Context, site string, limit int) ([]state.Entry, bool, error)
}

type Queue interface {
	Enqueue(site, preset string, accept bool) (discoveryworker.Request, bool)
	Pending() []discoveryworker.Request
}

// Pinger is implemented by state stores backed by a database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Runs      Runs
	Queue     Queue
	Inventory discovery.InventorySource
	Metrics   *metrics.Metrics
	// Ready, when set, is checked by /readyz.
	Ready Pinger
}

type Handler struct {
	log       zerolog.Logger
	runs      Runs
	queue     Queue
	inventory discovery.InventorySource
	metrics   *metrics.Metrics
	ready     Pinger
}

func NewHandler(log zerolog.Logger, opts Options) *Handler {
	return &Handler{
		log:       log,
		runs:      opts.Runs,
		queue:     opts.Queue,
		inventory: opts.Inventory,
		metrics:   opts.Metrics,
		ready:     opts.Ready,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Get("/sites", h.handleListSites)
			r.Get("/queue", h.handleQueue)
			r.Route("/sites/{site}", func(r chi.Router) {
				r.Get("/snapshot", h.handleSnapshot)
				r.Get("/diff", h.handleDiff)
				r.Get("/history", h.handleHistory)
				r.Post("/discover", h.handleDiscover)
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Label by route pattern so per-site paths do not explode cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		elapsed := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, path, ww.Status(), elapsed)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.ready != nil {
		if err := h.ready.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "state_unavailable", "state store not ready", map[string]any{"error": err.Error()})
			return
		}
	}
	if h.inventory != nil {
		if _, err := h.inventory(); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "inventory_unavailable", "inventory cannot be read", map[string]any{"error": err.Error()})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

type siteSummary struct {
	Name      string     `json:"name"`
	Devices   int        `json:"devices"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Result    string     `json:"result,omitempty"`
	Pending   bool       `json:"pending"`
}

func (h *Handler) handleListSites(w http.ResponseWriter, r *http.Request) {
	if h.inventory == nil {
		h.writeError(w, http.StatusServiceUnavailable, "inventory_unavailable", "inventory not configured", nil)
		return
	}
	inv, err := h.inventory()
	if err != nil {
		h.log.Error().Err(err).Msg("load inventory failed")
		h.writeError(w, http.StatusInternalServerError, "inventory_error", "failed to read inventory", nil)
		return
	}

	pending := map[string]bool{}
	if h.queue != nil {
		for _, req := range h.queue.Pending() {
			pending[req.Site] = true
		}
	}

	resp := make([]siteSummary, 0, len(inv))
	for _, name := range inv.Sites() {
		s := siteSummary{Name: name, Devices: len(inv[name]), Pending: pending[name]}
		if h.runs != nil {
			if run, ok := h.runs.LastRun(name); ok {
				finished := run.FinishedAt
				s.LastRunAt = &finished
				s.Result = run.Result
			}
		}
		resp = append(resp, s)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if !h.ensureQueue(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.queue.Pending())
}

func (h *Handler) ensureRuns(w http.ResponseWriter) bool {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "engine_unavailable", "discovery engine not configured", nil)
		return false
	}
	return true
}

func (h *Handler) ensureQueue(w http.ResponseWriter) bool {
	if h.queue == nil {
		h.writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "discovery queue not configured", nil)
		return false
	}
	return true
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	if !h.ensureRuns(w) {
		return
	}

	snap, ok, err := h.runs.Baseline(r.Context(), site)
	if err != nil {
		h.log.Error().Err(err).Str("site", site).Msg("load baseline failed")
		h.writeError(w, http.StatusInternalServerError, "state_error", "failed to load baseline", nil)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "no baseline for site", map[string]any{"site": site})
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	if !h.ensureRuns(w) {
		return
	}

	run, ok := h.runs.LastRun(site)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "no discovery run for site", map[string]any{"site": site})
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	if !h.ensureRuns(w) {
		return
	}

	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "limit must be between 1 and 500", map[string]any{"limit": raw})
			return
		}
		limit = n
	}

	entries, supported, err := h.runs.History(r.Context(), site, limit)
	if !supported {
		h.writeError(w, http.StatusNotImplemented, "history_unsupported", "state backend does not keep history", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("site", site).Msg("load history failed")
		h.writeError(w, http.StatusInternalServerError, "state_error", "failed to load history", nil)
		return
	}
	if entries == nil {
		entries = []state.Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

type discoverRequest struct {
	Preset string `json:"preset,omitempty"`
	Accept bool   `json:"accept,omitempty"`
}

type discoverResponse struct {
	discoveryworker.Request
	Status string `json:"status"`
}

func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")

	var req discoverRequest
	if r.ContentLength != 0 {
		if err := decodeJSONStrict(r, &req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
			return
		}
	}
	if p := strings.TrimSpace(req.Preset); p != "" && discoveryworker.CanonicalPreset(p) != strings.ToLower(p) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown preset", map[string]any{"preset": p})
		return
	}

	if !h.ensureQueue(w) {
		return
	}
	if h.inventory != nil {
		inv, err := h.inventory()
		if err != nil {
			h.log.Error().Err(err).Msg("load inventory failed")
			h.writeError(w, http.StatusInternalServerError, "inventory_error", "failed to read inventory", nil)
			return
		}
		if _, err := inv.Addresses(site); errors.Is(err, inventory.ErrSiteNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "site not in inventory", map[string]any{"site": site})
			return
		}
	}

	queued, created := h.queue.Enqueue(site, req.Preset, req.Accept)
	status := "queued"
	if !created {
		status = "already_queued"
	}
	h.log.Info().Str("site", site).Str("run_id", queued.ID).Str("status", status).Msg("discovery requested")
	h.writeJSON(w, http.StatusAccepted, discoverResponse{Request: queued, Status: status})
}
