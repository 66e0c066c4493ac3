// Cascade Worker — выполняет nodes графа.
//
// Worker:
//   - Потребляет tasks из очередей webhook/api/ollama
//   - Выполняет node и персистит результат
//   - Публикует tasks для исходящих рёбер (fan-out)
//   - Ограничивает retry временных ошибок, остальное уходит в DLQ
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Cascade/internal/engine"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cascade-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := repo.NewStore(pool)

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn := mq.NewConnection(mqURL, logger)
	defer mqConn.Close()

	if err := mqConn.Connect(ctx); err != nil {
		logger.Warn("RabbitMQ not available yet, will keep reconnecting", "error", err)
	} else {
		logger.Info("RabbitMQ connected")
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Ollama
	ollamaURL := os.Getenv("OLLAMA_API_URL")
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = engine.DefaultOllamaModel
	}

	ollamaRunner, err := engine.NewOllamaRunner(store, publisher, ollamaURL, ollamaModel, logger)
	if err != nil {
		logger.Error("failed to create ollama runner", "error", err)
		os.Exit(1)
	}

	// Создаём dispatcher и engine
	dispatcher := engine.NewDispatcher(engine.DispatcherConfig{
		Store:   store,
		Webhook: engine.NewWebhookRunner(store, publisher, logger),
		API:     engine.NewAPIRunner(store, publisher, logger),
		Ollama:  ollamaRunner,
		Logger:  logger,
	})

	eng := engine.New(engine.Config{
		Conn:       mqConn,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	eng.Stop()
	logger.Info("cascade-worker stopped")
}
