package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Probes и метрики без логирования: их дёргают слишком часто
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Bridge
	mux.Handle("GET /api/v1/bridge", chain(http.HandlerFunc(h.GetBridge)))

	// Journal
	mux.Handle("GET /api/v1/tasks/unfinished", chain(http.HandlerFunc(h.ListUnfinishedTasks)))
}

// Routes возвращает готовый mux со всеми маршрутами.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}
