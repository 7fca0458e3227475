// Package mqm — REST клиент Octane (MQM) сервера.
//
// # Обзор
//
// Client реализует bridge.RemoteClient поверх HTTP:
//
//   - Sign-in: POST {location}/authentication/sign_in, сессия хранится в cookie jar
//   - Long-poll задач: GET .../analytics/ci/servers/{instance}/tasks
//   - Результат задачи: PUT .../tasks/{task}/result
//
// Factory реализует bridge.ClientFactory и переиспользует сессию
// для одинаковых снимков конфигурации, чтобы не выполнять sign-in
// на каждую попытку poll.
//
// # Коды ответа
//
//   - 200 — batch задач (тело как есть)
//   - 204, 408 — задач нет
//   - 401, 403 — повторный sign-in один раз, затем domain.ErrAuthentication
//   - 503 — domain.ErrTemporarilyUnavailable
//   - остальные — ErrUnexpectedStatus (транспортная ошибка для backoff)
package mqm
