// Package telemetry обеспечивает наблюдаемость bridge.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики polling loop и пула задач
//
// Метрики экспортируются на /metrics endpoint статусного сервера.
package telemetry
