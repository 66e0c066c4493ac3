package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// EdgeRepo — репозиторий для работы с edges.
type EdgeRepo struct {
	pool *pgxpool.Pool
}

// NewEdgeRepo создаёт новый EdgeRepo.
func NewEdgeRepo(pool *pgxpool.Pool) *EdgeRepo {
	return &EdgeRepo{pool: pool}
}

const edgeColumns = `id, flow_id, source_node_id, target_node_id, created_at, updated_at`

// GetIncoming возвращает входящий edge для node.
// Предполагается не более одного; берётся первый по времени создания.
func (r *EdgeRepo) GetIncoming(ctx context.Context, nodeID string) (*domain.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM edges
		WHERE target_node_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`

	var e domain.Edge
	err := r.pool.QueryRow(ctx, query, nodeID).Scan(
		&e.ID,
		&e.FlowID,
		&e.SourceNodeID,
		&e.TargetNodeID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan edge: %w", err)
	}
	return &e, nil
}

// ListOutgoing возвращает все исходящие edges node.
// Пустой список означает терминальную точку графа.
func (r *EdgeRepo) ListOutgoing(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM edges
		WHERE source_node_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		err := rows.Scan(
			&e.ID,
			&e.FlowID,
			&e.SourceNodeID,
			&e.TargetNodeID,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
