package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type EventReader interface {
	List(ctx context.Context, f Filter) ([]domain.ActivityEvent, error)
	CountByKind(ctx context.Context, since time.Time) (map[string]int, error)
}

type Handler struct {
	repo   EventReader
	logger *slog.Logger
}

func NewHandler(repo EventReader, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// HandleList serves GET /activity?kind=a,b&user_id=&since=RFC3339&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{UserID: q.Get("user_id")}

	if kinds := q.Get("kind"); kinds != "" {
		for _, k := range strings.Split(kinds, ",") {
			if k = strings.TrimSpace(k); k != "" {
				f.Kinds = append(f.Kinds, k)
			}
		}
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid since, expected RFC3339")
			return
		}
		f.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	events, err := h.repo.List(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list activity", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// HandleSummary serves GET /activity/summary?window=24h.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}

	counts, err := h.repo.CountByKind(r.Context(), time.Now().Add(-window))
	if err != nil {
		h.logger.Error("failed to summarize activity", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"window": window.String(), "counts": counts})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
