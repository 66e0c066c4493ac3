package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// ResultRepo — репозиторий для работы с node_results.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo создаёт новый ResultRepo.
func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// Get возвращает результат node в рамках execution.
func (r *ResultRepo) Get(ctx context.Context, executionID uuid.UUID, nodeID string) (*domain.NodeResult, error) {
	query := `
		SELECT id, execution_id, node_id, result, created_at
		FROM node_results
		WHERE execution_id = $1 AND node_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`

	var res domain.NodeResult
	err := r.pool.QueryRow(ctx, query, executionID, nodeID).Scan(
		&res.ID,
		&res.ExecutionID,
		&res.NodeID,
		&res.Result,
		&res.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan node result: %w", err)
	}
	return &res, nil
}

// Insert записывает результат node.
//
// Уникальность по (execution_id, node_id) обеспечивает контракт
// идемпотентности: повторная вставка возвращает ErrAlreadyExists,
// строка не мутируется.
func (r *ResultRepo) Insert(ctx context.Context, res *domain.NodeResult) error {
	query := `
		INSERT INTO node_results (id, execution_id, node_id, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (execution_id, node_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		res.ID,
		res.ExecutionID,
		res.NodeID,
		res.Result,
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert node result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// ListByExecution возвращает все результаты execution в порядке записи.
func (r *ResultRepo) ListByExecution(ctx context.Context, executionID uuid.UUID) ([]domain.NodeResult, error) {
	query := `
		SELECT id, execution_id, node_id, result, created_at
		FROM node_results
		WHERE execution_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list node results: %w", err)
	}
	defer rows.Close()

	var results []domain.NodeResult
	for rows.Next() {
		var res domain.NodeResult
		err := rows.Scan(
			&res.ID,
			&res.ExecutionID,
			&res.NodeID,
			&res.Result,
			&res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan node result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
