package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeBridge — обменник событий bridge.
const ExchangeBridge Exchange = "octane.bridge"

// QueueTasksCompleted — очередь событий о завершённых задачах.
const QueueTasksCompleted Queue = "bridge.tasks.completed"

// RoutingKeyTaskCompleted — ключ события task.completed.
const RoutingKeyTaskCompleted RoutingKey = "task.completed"

// binding — одна связка очередь → обменник.
type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var bindings = []binding{
	{QueueTasksCompleted, RoutingKeyTaskCompleted, ExchangeBridge},
}

// SetupTopology объявляет exchange, очередь и binding.
// Операции идемпотентны, вызывается при каждом старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeBridge), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeBridge, err)
		}

		for _, b := range bindings {
			_, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			err = ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	info := "octane bridge RabbitMQ topology:\n"
	info += fmt.Sprintf("  %s (topic)\n", ExchangeBridge)
	for _, b := range bindings {
		info += fmt.Sprintf("  └── %s [routing: %s]\n", b.queue, b.routingKey)
	}
	return info
}
