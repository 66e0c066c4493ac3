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

// Exchanges.
const (
	// ExchangeTasks — общий topic exchange для всех task-сообщений.
	ExchangeTasks Exchange = "task_exchange"

	// ExchangeDLQ — dead letter exchange для исчерпавших retry сообщений.
	ExchangeDLQ Exchange = "task_dlx"
)

// Queues — по одной очереди на тип node, имена зеркалят routing keys.
const (
	QueueWebhook  Queue = "webhook_queue"
	QueueAPI      Queue = "api_queue"
	QueueOllama   Queue = "ollama_queue"
	QueueDLQTasks Queue = "dlq.tasks"
)

// Routing keys — по одному на тип node.
const (
	RoutingKeyWebhook  RoutingKey = "webhook.request"
	RoutingKeyAPI      RoutingKey = "api.request"
	RoutingKeyOllama   RoutingKey = "ollama.request"
	RoutingKeyDLQTasks RoutingKey = "tasks"
)

// declareTaskExchange объявляет общий topic exchange.
// Вызывается при каждом успешном connect.
func declareTaskExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeTasks), // name
		"topic",               // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeTasks, err)
	}
	return nil
}

// SetupTopology объявляет все очереди и bindings.
//
// Subscriber при reconnect повторно объявляет свою очередь сам, а exchange
// и DLX переобъявляет менеджер соединения; здесь при старте процесса
// создаётся полная топология, включая очереди без consumers.
func SetupTopology(ctx context.Context, conn *Connection) error {
	ch, err := conn.Channel(ctx)
	if err != nil {
		return err
	}

	if err := declareDLQ(ch); err != nil {
		return err
	}

	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
	}{
		{QueueWebhook, RoutingKeyWebhook},
		{QueueAPI, RoutingKeyAPI},
		{QueueOllama, RoutingKeyOllama},
	}

	for _, b := range bindings {
		if err := DeclareTaskQueue(ch, b.queue, b.routingKey); err != nil {
			return err
		}
	}

	return nil
}

// declareDLQ объявляет dead letter exchange и очередь для ручного разбора.
func declareDLQ(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeDLQ),
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeDLQ, err)
	}

	_, err = ch.QueueDeclare(
		string(QueueDLQTasks),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueDLQTasks, err)
	}

	err = ch.QueueBind(
		string(QueueDLQTasks),
		string(RoutingKeyDLQTasks),
		string(ExchangeDLQ),
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue %s: %w", QueueDLQTasks, err)
	}
	return nil
}

// DeclareTaskQueue объявляет durable очередь tasks и привязывает её к
// exchange под routing key. Rejected-сообщения уходят в DLQ.
func DeclareTaskQueue(ch *amqp.Channel, queue Queue, routingKey RoutingKey) error {
	args := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	_, err := ch.QueueDeclare(
		string(queue), // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		args,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	err = ch.QueueBind(
		string(queue),
		string(routingKey),
		string(ExchangeTasks),
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, ExchangeTasks, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Cascade RabbitMQ Topology:

    task_exchange (topic)
    ├── webhook_queue [routing: webhook.request]
    ├── api_queue     [routing: api.request]
    └── ollama_queue  [routing: ollama.request]
            Consumers: cascade-worker
            DLQ: dlq.tasks

    task_dlx (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
