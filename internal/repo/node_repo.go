package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// NodeRepo — репозиторий для работы с nodes.
type NodeRepo struct {
	pool *pgxpool.Pool
}

// NewNodeRepo создаёт новый NodeRepo.
func NewNodeRepo(pool *pgxpool.Pool) *NodeRepo {
	return &NodeRepo{pool: pool}
}

const nodeColumns = `id, flow_id, type, name, data, position_x, position_y, created_at, updated_at`

// GetByID возвращает node по ID.
func (r *NodeRepo) GetByID(ctx context.Context, id string) (*domain.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = $1`

	var n domain.Node
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.FlowID,
		&n.Type,
		&n.Name,
		&n.Data,
		&n.PositionX,
		&n.PositionY,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}
	return &n, nil
}

// ListByIDs возвращает nodes по списку ID (для загрузки целей fan-out).
func (r *NodeRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		var n domain.Node
		err := rows.Scan(
			&n.ID,
			&n.FlowID,
			&n.Type,
			&n.Name,
			&n.Data,
			&n.PositionX,
			&n.PositionY,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
