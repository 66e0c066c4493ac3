package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Cascade/internal/telemetry"
)

// retryHeader — AMQP-заголовок со счётчиком попыток доставки task.
const retryHeader = "x-retry"

// TaskMessage — конверт task-сообщения (wire format).
//
// Сообщение без ExecutionID — входная точка графа: диспетчер создаст
// новый execution. Body несёт payload внешнего триггера (тело webhook)
// и присутствует только у входных tasks.
type TaskMessage struct {
	// NodeID — node, который нужно выполнить.
	NodeID string `json:"nodeId"`

	// ExecutionID — контекст выполнения; nil для входной точки графа.
	ExecutionID *uuid.UUID `json:"executionId,omitempty"`

	// Body — payload триггера (тело входящего webhook-запроса).
	Body json.RawMessage `json:"body,omitempty"`
}

// Publisher публикует task-сообщения в общий exchange.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// PublishTask публикует task с persistent delivery mode.
//
// Если брокер сигнализировал flow control, публикация ждёт снятия
// блокировки (в пределах ctx), а не теряет сообщение. Ошибка публикации
// возвращается вызывающему без auto-retry: объемлющий task останется
// неподтверждённым, и доставка повторится средствами брокера.
func (p *Publisher) PublishTask(ctx context.Context, routingKey RoutingKey, msg *TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if err := p.conn.AwaitUnblocked(ctx); err != nil {
		return fmt.Errorf("await broker capacity: %w", err)
	}

	ch, err := p.conn.Channel(ctx)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		string(ExchangeTasks), // exchange
		string(routingKey),    // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    uuid.New().String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", ExchangeTasks, routingKey, err)
	}

	telemetry.TasksPublished.WithLabelValues(string(routingKey)).Inc()
	p.logger.Debug("published task",
		"routing_key", routingKey,
		"node_id", msg.NodeID,
	)

	return nil
}
