// Package worker выполняет задачи Octane на локальном CI хосте.
//
// # Обзор
//
// Relay — реализация bridge.Processor. Каждая задача — это HTTP-запрос,
// который Octane хочет выполнить на CI хосте (запуск job, чтение
// структуры pipeline и т.д.). Relay:
//
//  1. Переносит path и query из URL задачи на LocalURL (или SelfURL)
//  2. Выполняет запрос с методом, заголовками и телом задачи
//  3. Собирает domain.TaskResult (статус, заголовки, тело)
//  4. Отправляет результат через factory.Create(cfg).PutAbridgedResult
//
// # Ошибки
//
// Сервер всегда получает ответ: сетевая ошибка локального запроса
// превращается в результат со статусом 500 и текстом ошибки.
// Process возвращает ошибку (domain.ErrTaskExecution), если результат
// не удалось отправить или локальный запрос не выполнился.
package worker
