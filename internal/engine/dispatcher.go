package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
)

// defaultMaxRetries — сколько раз временная ошибка переиздаётся,
// прежде чем task уйдёт в DLQ.
const defaultMaxRetries = 5

// Dispatcher — точка входа consumer'а: превращает доставленное сообщение
// ровно в одно выполнение node.
//
// Порядок обработки:
//  1. Парсинг конверта; без nodeId — фатально.
//  2. Проверка идемпотентности: существующий NodeResult для
//     (executionId, nodeId) — дубликат, ack без повторного выполнения.
//  3. Загрузка node и валидация конфигурации; отсутствие или невалидность —
//     фатально.
//  4. Без executionId — входная точка графа: создаётся новый execution
//     (running), его ID наследуют все потомки.
//  5. Исчерпывающий dispatch по варианту конфигурации.
//  6. Классификация исхода: успех → ack; фатально → DLQ + execution error;
//     временно → retry, после исчерпания — DLQ + execution error.
type Dispatcher struct {
	store      Store
	webhook    Runner
	api        Runner
	ollama     Runner
	maxRetries int
	logger     *slog.Logger
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	Store   Store
	Webhook Runner
	API     Runner
	Ollama  Runner

	// MaxRetries — потолок переизданий для временных ошибок
	// (default: 5).
	MaxRetries int

	Logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		store:      cfg.Store,
		webhook:    cfg.Webhook,
		api:        cfg.API,
		ollama:     cfg.Ollama,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Handle обрабатывает одно доставленное сообщение (mq.Handler).
func (d *Dispatcher) Handle(ctx context.Context, delivery *mq.Delivery) error {
	var msg mq.TaskMessage
	if err := json.Unmarshal(delivery.Body(), &msg); err != nil {
		return mq.Fatal(fmt.Errorf("unmarshal task: %w", err))
	}
	if msg.NodeID == "" {
		return mq.Fatal(ErrMissingNodeID)
	}

	// Идемпотентность: при повторной доставке результат уже записан.
	if msg.ExecutionID != nil {
		_, err := d.store.GetNodeResult(ctx, *msg.ExecutionID, msg.NodeID)
		if err == nil {
			d.logger.Warn("duplicate task delivery, skipping",
				"execution_id", msg.ExecutionID,
				"node_id", msg.NodeID,
			)
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("check idempotency: %w", err)
		}
	}

	node, err := d.store.GetNode(ctx, msg.NodeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return d.fail(ctx, msg.ExecutionID,
				fmt.Errorf("%w: %s", ErrNodeNotFound, msg.NodeID))
		}
		return fmt.Errorf("get node: %w", err)
	}

	cfg, err := node.ParseConfig()
	if err != nil {
		// Неподдерживаемый тип или битая конфигурация: retry не поможет.
		return d.fail(ctx, msg.ExecutionID, err)
	}

	// Без executionId — входная точка нового запуска графа.
	executionID := msg.ExecutionID
	if executionID == nil {
		execution := domain.NewExecution(node.FlowID)
		if err := d.store.CreateExecution(ctx, execution); err != nil {
			return fmt.Errorf("create execution: %w", err)
		}
		executionID = &execution.ID
		d.logger.Info("execution started",
			"execution_id", execution.ID,
			"flow_id", node.FlowID,
			"node_id", node.ID,
		)
	}

	task := &Task{
		Node:        node,
		Config:      cfg,
		ExecutionID: *executionID,
		Body:        msg.Body,
	}

	d.logger.Info("processing node",
		"execution_id", task.ExecutionID,
		"node_id", node.ID,
		"type", node.Type,
		"retries", delivery.Retries(),
	)

	runErr := d.dispatch(ctx, task)
	if runErr == nil {
		return nil
	}

	if mq.IsFatal(runErr) {
		return d.fail(ctx, executionID, runErr)
	}

	if delivery.Retries() >= d.maxRetries {
		return d.fail(ctx, executionID,
			fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, delivery.Retries()+1, runErr))
	}

	return runErr
}

// dispatch выполняет task через runner его варианта конфигурации.
// Switch исчерпывающий: ParseConfig уже отсёк неизвестные типы.
func (d *Dispatcher) dispatch(ctx context.Context, task *Task) error {
	switch task.Config.(type) {
	case domain.WebhookConfig:
		return d.webhook.Run(ctx, task)
	case domain.APIConfig:
		return d.api.Run(ctx, task)
	case domain.OllamaConfig:
		return d.ollama.Run(ctx, task)
	default:
		return mq.Fatal(fmt.Errorf("%w: %T", domain.ErrUnknownNodeType, task.Config))
	}
}

// fail помечает execution как error (если он уже существует) и возвращает
// фатальную ошибку — сообщение уйдёт в DLQ без requeue.
func (d *Dispatcher) fail(ctx context.Context, executionID *uuid.UUID, cause error) error {
	if executionID != nil {
		if err := d.store.FailExecution(ctx, *executionID); err != nil && !errors.Is(err, repo.ErrInvalidState) {
			d.logger.Error("failed to mark execution as error",
				"execution_id", executionID,
				"error", err,
			)
		}
	}
	return mq.Fatal(cause)
}
