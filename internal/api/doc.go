// Package api содержит HTTP сервер статуса bridge.
//
// Структура:
//   - handler.go        — Handler с DI (bridge, журнал, prometheus gatherer, logger)
//   - routes.go         — регистрация маршрутов
//   - server.go         — http.Server с graceful shutdown
//   - middleware.go     — middleware (logging, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - bridge_handler.go — /api/v1/bridge, /api/v1/tasks/unfinished, /healthz
//
// API только читает состояние: управлять bridge можно через конфигурацию.
package api
