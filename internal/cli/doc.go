// Package cli реализует клиентскую часть octane-bridge.
//
// # Обзор
//
// CLI ходит в API статуса работающего демона по HTTP и не импортирует
// внутренние пакеты bridge: типы ответов продублированы в client.go.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API статуса. Разбирает DataResponse, ListResponse
// и ErrorResponse.
//
//	client := cli.NewClient("http://localhost:8090")
//	status, err := client.BridgeStatus()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию, состояние раскрашено fatih/color
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: octane-bridge status --json | jq .
//
// ## Commands
//
//   - status: состояние bridge (POLLING, IDLE, DISABLED)
//   - status tasks: задачи из журнала, которые ещё не завершены
package cli
