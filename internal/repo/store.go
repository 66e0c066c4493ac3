package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// Store агрегирует репозитории в набор операций движка выполнения.
// Реализует engine.Store.
type Store struct {
	nodes      *NodeRepo
	edges      *EdgeRepo
	executions *ExecutionRepo
	results    *ResultRepo
}

// NewStore создаёт Store поверх пула соединений.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		nodes:      NewNodeRepo(pool),
		edges:      NewEdgeRepo(pool),
		executions: NewExecutionRepo(pool),
		results:    NewResultRepo(pool),
	}
}

// GetNode возвращает node по ID.
func (s *Store) GetNode(ctx context.Context, nodeID string) (*domain.Node, error) {
	return s.nodes.GetByID(ctx, nodeID)
}

// GetNodes возвращает nodes по списку ID.
func (s *Store) GetNodes(ctx context.Context, nodeIDs []string) ([]domain.Node, error) {
	return s.nodes.ListByIDs(ctx, nodeIDs)
}

// GetIncomingEdge возвращает входящий edge node (первый, если их несколько).
func (s *Store) GetIncomingEdge(ctx context.Context, nodeID string) (*domain.Edge, error) {
	return s.edges.GetIncoming(ctx, nodeID)
}

// ListOutgoingEdges возвращает исходящие edges node.
func (s *Store) ListOutgoingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	return s.edges.ListOutgoing(ctx, nodeID)
}

// GetNodeResult возвращает результат пары (execution, node).
func (s *Store) GetNodeResult(ctx context.Context, executionID uuid.UUID, nodeID string) (*domain.NodeResult, error) {
	return s.results.Get(ctx, executionID, nodeID)
}

// InsertNodeResult записывает результат node (append-only).
func (s *Store) InsertNodeResult(ctx context.Context, res *domain.NodeResult) error {
	return s.results.Insert(ctx, res)
}

// CreateExecution создаёт новый execution.
func (s *Store) CreateExecution(ctx context.Context, e *domain.Execution) error {
	return s.executions.Create(ctx, e)
}

// CompleteExecution переводит execution в completed.
func (s *Store) CompleteExecution(ctx context.Context, executionID uuid.UUID) error {
	return s.executions.Complete(ctx, executionID)
}

// FailExecution переводит execution в error.
func (s *Store) FailExecution(ctx context.Context, executionID uuid.UUID) error {
	return s.executions.Fail(ctx, executionID)
}
