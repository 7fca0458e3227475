package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// GetBridge возвращает состояние bridge. Пароль в ответ не попадает.
func (h *Handler) GetBridge(w http.ResponseWriter, r *http.Request) {
	Success(w, h.bridge.Status())
}

// ListUnfinishedTasks возвращает задачи из журнала, которые ещё не завершены.
func (h *Handler) ListUnfinishedTasks(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		NotFound(w, "task journal is not configured")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	entries, err := h.journal.ListUnfinished(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "tasks not found") {
		return
	}

	List(w, entries, len(entries))
}

// Healthz — liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok %s", time.Since(h.started).Round(time.Second))
}
