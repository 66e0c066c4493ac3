package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Cascade/internal/mq"
)

// defaultPrefetch — максимум неподтверждённых доставок на consumer.
const defaultPrefetch = 5

// Engine — рантайм движка: по одному consumer на очередь типа node,
// все доставки идут через общий Dispatcher.
//
// Экземпляры Engine масштабируются горизонтально — несколько процессов
// потребляют из одних и тех же очередей.
type Engine struct {
	conn        *mq.Connection
	dispatcher  *Dispatcher
	prefetch    int
	subscribers []*mq.Subscriber

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Engine.
type Config struct {
	// Conn — менеджер соединения с брокером.
	Conn *mq.Connection

	// Dispatcher — обработчик доставок.
	Dispatcher *Dispatcher

	// Prefetch — лимит in-flight доставок на consumer (default: 5).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		conn:       cfg.Conn,
		dispatcher: cfg.Dispatcher,
		prefetch:   prefetch,
		logger:     logger,
	}
}

// Start запускает consumers для всех трёх очередей.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	queues := []struct {
		queue      mq.Queue
		routingKey mq.RoutingKey
	}{
		{mq.QueueWebhook, mq.RoutingKeyWebhook},
		{mq.QueueAPI, mq.RoutingKeyAPI},
		{mq.QueueOllama, mq.RoutingKeyOllama},
	}

	for _, q := range queues {
		sub := mq.NewSubscriber(e.conn, e.logger, mq.SubscriberConfig{
			Queue:      q.queue,
			RoutingKey: q.routingKey,
			Handler:    e.dispatcher.Handle,
			Prefetch:   e.prefetch,
		})
		e.subscribers = append(e.subscribers, sub)

		e.wg.Add(1)
		go func(sub *mq.Subscriber, queue mq.Queue) {
			defer e.wg.Done()
			if err := sub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("consumer error", "queue", queue, "error", err)
			}
		}(sub, q.queue)
	}

	e.logger.Info("engine started", "prefetch", e.prefetch)
	return nil
}

// Stop останавливает consumers и дожидается завершения горутин.
func (e *Engine) Stop() {
	e.logger.Info("stopping engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	e.wg.Wait()

	e.logger.Info("engine stopped")
}
