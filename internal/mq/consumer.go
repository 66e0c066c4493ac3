package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Cascade/internal/telemetry"
)

// Handler — функция обработки сообщения.
//
// Семантика возвращаемой ошибки:
//   - nil            → ack (сообщение обработано)
//   - Fatal(err)     → nack без requeue (уходит в DLQ)
//   - любая другая   → временная ошибка: переиздание с инкрементом x-retry
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Body возвращает тело сообщения.
func (d *Delivery) Body() []byte {
	return d.Raw.Body
}

// Retries возвращает количество уже выполненных переизданий из x-retry.
func (d *Delivery) Retries() int {
	v, ok := d.Raw.Headers[retryHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// Subscriber потребляет task-сообщения из одной очереди.
type Subscriber struct {
	conn       *Connection
	logger     *slog.Logger
	queue      Queue
	routingKey RoutingKey
	prefetch   int
	handler    Handler
}

// SubscriberConfig — конфигурация Subscriber.
type SubscriberConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// RoutingKey — ключ, под которым очередь привязывается к exchange.
	RoutingKey RoutingKey

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — максимум неподтверждённых доставок на consumer.
	Prefetch int
}

// NewSubscriber создаёт Subscriber.
func NewSubscriber(conn *Connection, logger *slog.Logger, cfg SubscriberConfig) *Subscriber {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Subscriber{
		conn:       conn,
		logger:     logger,
		queue:      cfg.Queue,
		routingKey: cfg.RoutingKey,
		prefetch:   prefetch,
		handler:    cfg.Handler,
	}
}

// Setup объявляет durable очередь и привязывает её к exchange.
func (s *Subscriber) Setup(ctx context.Context) error {
	ch, err := s.conn.Channel(ctx)
	if err != nil {
		return err
	}
	return DeclareTaskQueue(ch, s.queue, s.routingKey)
}

// Start запускает цикл потребления и блокируется до отмены ctx.
//
// Брокер не помнит consumer state между соединениями, поэтому на каждом
// переходе соединения в Connected очередь объявляется заново и consumer
// перерегистрируется.
func (s *Subscriber) Start(ctx context.Context) error {
	ready := s.conn.NotifyReady()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := s.consume(ctx)
		if err != nil {
			s.logger.Error("failed to setup consume", "queue", s.queue, "error", err)
			// Ждём следующего подключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ready:
				s.logger.Info("connection ready, restarting consumer", "queue", s.queue)
				continue
			}
		}

		s.logger.Info("consumer started", "queue", s.queue, "prefetch", s.prefetch)

		if err := s.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("deliveries channel closed, awaiting reconnect", "queue", s.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ready:
				continue
			}
		}
	}
}

// consume заново объявляет очередь, ставит prefetch и начинает потребление.
func (s *Subscriber) consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := s.Setup(ctx); err != nil {
		return nil, err
	}

	ch, err := s.conn.Channel(ctx)
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(s.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения до закрытия канала доставки.
func (s *Subscriber) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			s.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение и применяет ack-политику.
func (s *Subscriber) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	d := &Delivery{Raw: raw}

	err := s.handler(ctx, d)
	if err == nil {
		telemetry.TasksConsumed.WithLabelValues(string(s.queue), "ack").Inc()
		raw.Ack(false)
		return
	}

	if IsFatal(err) {
		telemetry.TasksConsumed.WithLabelValues(string(s.queue), "dlq").Inc()
		s.logger.Error("fatal handler error, dead-lettering",
			"queue", s.queue,
			"message_id", raw.MessageId,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}

	// Временная ошибка: переиздаём тот же конверт с инкрементом счётчика
	// и подтверждаем оригинал. Redelivery после краха (без ack) остаётся
	// за брокером — семантика at-least-once сохраняется.
	telemetry.TasksConsumed.WithLabelValues(string(s.queue), "retry").Inc()
	retries := d.Retries()
	s.logger.Warn("transient handler error, retrying",
		"queue", s.queue,
		"message_id", raw.MessageId,
		"retries", retries,
		"error", err,
	)

	if err := s.republish(ctx, raw, retries+1); err != nil {
		s.logger.Error("failed to republish for retry, requeueing",
			"queue", s.queue,
			"message_id", raw.MessageId,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// republish публикует копию сообщения под исходным routing key
// с обновлённым счётчиком x-retry.
func (s *Subscriber) republish(ctx context.Context, raw amqp.Delivery, retries int) error {
	ch, err := s.conn.Channel(ctx)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		raw.Exchange,
		raw.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  raw.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    raw.MessageId,
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				retryHeader: int32(retries),
			},
			Body: raw.Body,
		},
	)
}
