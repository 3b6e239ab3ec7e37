package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// passthroughHeaders are copied from the upstream response.
var passthroughHeaders = []string{"Content-Type", "Content-Disposition", "Cache-Control", "Last-Modified", "ETag"}

type Handler struct {
	backendProxy  *ServiceProxy
	activityProxy *ServiceProxy
	logger        *slog.Logger
}

// NewHandler wires the backend proxy and an optional activity service proxy.
func NewHandler(backendProxy, activityProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		backendProxy:  backendProxy,
		activityProxy: activityProxy,
		logger:        logger,
	}
}

// Register mounts the proxied routes on mux. wrap decorates every handler.
func (h *Handler) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("/api/", wrap(h.HandleAPI))
	mux.HandleFunc("GET /uploads/", wrap(h.HandleUploads))
	if h.activityProxy != nil {
		mux.HandleFunc("GET /activity", wrap(h.HandleActivity))
		mux.HandleFunc("GET /activity/summary", wrap(h.HandleActivity))
	}
}

// HandleAPI forwards /api/* unchanged; the backend serves the same prefix.
func (h *Handler) HandleAPI(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.backendProxy, r.URL.Path)
}

func (h *Handler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.backendProxy, r.URL.Path)
}

func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if h.activityProxy == nil {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.proxyRequest(w, r, h.activityProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
