package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
)

// Store — операции персистентности, которые нужны движку.
// Реализуется repo.Store; в тестах подменяется in-memory фейком.
//
// Методы Get* возвращают repo.ErrNotFound для отсутствующих записей.
type Store interface {
	GetNode(ctx context.Context, nodeID string) (*domain.Node, error)
	GetNodes(ctx context.Context, nodeIDs []string) ([]domain.Node, error)
	GetIncomingEdge(ctx context.Context, nodeID string) (*domain.Edge, error)
	ListOutgoingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error)
	GetNodeResult(ctx context.Context, executionID uuid.UUID, nodeID string) (*domain.NodeResult, error)
	InsertNodeResult(ctx context.Context, res *domain.NodeResult) error
	CreateExecution(ctx context.Context, e *domain.Execution) error
	CompleteExecution(ctx context.Context, executionID uuid.UUID) error
	FailExecution(ctx context.Context, executionID uuid.UUID) error
}

// TaskPublisher публикует дочерние tasks. Реализуется mq.Publisher.
type TaskPublisher interface {
	PublishTask(ctx context.Context, routingKey mq.RoutingKey, msg *mq.TaskMessage) error
}

// Task — единица работы для Runner: node с уже валидированной
// конфигурацией в контексте execution.
type Task struct {
	// Node — выполняемый node.
	Node *domain.Node

	// Config — типизированная конфигурация node.
	Config domain.NodeConfig

	// ExecutionID — контекст выполнения.
	ExecutionID uuid.UUID

	// Body — payload триггера (только для входных tasks).
	Body json.RawMessage
}

// Runner выполняет типоспецифичный эффект node.
type Runner interface {
	Run(ctx context.Context, task *Task) error
}

// routingKeyFor возвращает routing key для типа node.
func routingKeyFor(t domain.NodeType) (mq.RoutingKey, error) {
	switch t {
	case domain.NodeTypeWebhook:
		return mq.RoutingKeyWebhook, nil
	case domain.NodeTypeAPI:
		return mq.RoutingKeyAPI, nil
	case domain.NodeTypeOllama:
		return mq.RoutingKeyOllama, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownNodeType, t)
	}
}

// base — общая часть runners: доступ к persistence, публикация потомков,
// контракт завершения.
type base struct {
	store     Store
	publisher TaskPublisher
	logger    *slog.Logger
}

// previousResult возвращает результат предыдущего node.
//
// Отсутствие входящего edge или результата — фатально: либо граф
// структурно сломан, либо нарушен порядок publish-after-persist.
func (b *base) previousResult(ctx context.Context, task *Task) (*domain.NodeResult, error) {
	edge, err := b.store.GetIncomingEdge(ctx, task.Node.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, mq.Fatal(fmt.Errorf("%w: node %s", ErrNoIncomingEdge, task.Node.ID))
		}
		return nil, fmt.Errorf("get incoming edge: %w", err)
	}

	res, err := b.store.GetNodeResult(ctx, task.ExecutionID, edge.SourceNodeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, mq.Fatal(fmt.Errorf("%w: execution %s, node %s",
				ErrNoPreviousResult, task.ExecutionID, edge.SourceNodeID))
		}
		return nil, fmt.Errorf("get previous result: %w", err)
	}

	return res, nil
}

// finish завершает выполнение node: сохраняет результат, затем либо
// закрывает execution (нет исходящих edges), либо публикует по одному
// task на каждый исходящий edge.
//
// Порядок строгий: результат персистится ДО публикации потомков — на этом
// держится гарантия, что потомок всегда найдёт результат родителя.
func (b *base) finish(ctx context.Context, task *Task, result json.RawMessage) error {
	res := domain.NewNodeResult(task.ExecutionID, task.Node.ID, result)
	if err := b.store.InsertNodeResult(ctx, res); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Гонка двух доставок одного task: результат уже записан
			// другим consumer, дальше он и продолжит.
			b.logger.Warn("node result already recorded, skipping fan-out",
				"execution_id", task.ExecutionID,
				"node_id", task.Node.ID,
			)
			return nil
		}
		return fmt.Errorf("insert node result: %w", err)
	}

	edges, err := b.store.ListOutgoingEdges(ctx, task.Node.ID)
	if err != nil {
		return fmt.Errorf("list outgoing edges: %w", err)
	}

	if len(edges) == 0 {
		// Терминальная точка графа — единственный путь успешного
		// завершения execution.
		b.logger.Info("no outgoing edges, execution ends here",
			"execution_id", task.ExecutionID,
			"node_id", task.Node.ID,
		)
		if err := b.store.CompleteExecution(ctx, task.ExecutionID); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				// Другая ветка уже закрыла execution (completed или error).
				return nil
			}
			return fmt.Errorf("complete execution: %w", err)
		}
		return nil
	}

	return b.fanOut(ctx, task, edges)
}

// fanOut публикует по одному task на каждый исходящий edge — в очередь,
// соответствующую типу целевого node. Публикации идут параллельно;
// runner успешен только когда успешны все.
func (b *base) fanOut(ctx context.Context, task *Task, edges []domain.Edge) error {
	targetIDs := make([]string, 0, len(edges))
	for _, e := range edges {
		targetIDs = append(targetIDs, e.TargetNodeID)
	}

	targets, err := b.store.GetNodes(ctx, targetIDs)
	if err != nil {
		return fmt.Errorf("load target nodes: %w", err)
	}
	byID := make(map[string]*domain.Node, len(targets))
	for i := range targets {
		byID[targets[i].ID] = &targets[i]
	}

	executionID := task.ExecutionID

	var wg sync.WaitGroup
	errCh := make(chan error, len(edges))

	for _, edge := range edges {
		target, ok := byID[edge.TargetNodeID]
		if !ok {
			b.logger.Error("target node not found, skipping edge",
				"edge_id", edge.ID,
				"target_node_id", edge.TargetNodeID,
			)
			continue
		}

		key, err := routingKeyFor(target.Type)
		if err != nil {
			errCh <- mq.Fatal(err)
			continue
		}

		wg.Add(1)
		go func(nodeID string, key mq.RoutingKey) {
			defer wg.Done()
			msg := &mq.TaskMessage{
				NodeID:      nodeID,
				ExecutionID: &executionID,
			}
			if err := b.publisher.PublishTask(ctx, key, msg); err != nil {
				errCh <- fmt.Errorf("publish task for node %s: %w", nodeID, err)
			}
		}(target.ID, key)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}

	b.logger.Debug("fanned out to downstream nodes",
		"execution_id", task.ExecutionID,
		"node_id", task.Node.ID,
		"count", len(edges),
	)
	return nil
}
