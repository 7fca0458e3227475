// Package mq публикует события жизненного цикла задач bridge в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — exchange, очередь и binding событий
//   - publisher.go  — публикация task.completed (реализует bridge.EventSink)
//   - consumer.go   — чтение событий (команда octane-bridge events)
//
// Публикация не влияет на выполнение задач: если брокер недоступен,
// событие теряется, а dispatcher только логирует ошибку.
package mq
