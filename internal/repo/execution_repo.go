package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Create создаёт новый execution.
func (r *ExecutionRepo) Create(ctx context.Context, e *domain.Execution) error {
	query := `
		INSERT INTO executions (id, flow_id, status, started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.FlowID,
		e.Status,
		e.StartedAt,
		e.CompletedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `
		SELECT id, flow_id, status, started_at, completed_at, created_at, updated_at
		FROM executions
		WHERE id = $1
	`

	var e domain.Execution
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.FlowID,
		&e.Status,
		&e.StartedAt,
		&e.CompletedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	return &e, nil
}

// UpdateStatus переводит execution в новый статус.
//
// Статус монотонен: терминальный (completed/error) не перезаписывается.
// Попытка обновить терминальный execution возвращает ErrInvalidState.
func (r *ExecutionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, completedAt *time.Time) error {
	query := `
		UPDATE executions
		SET status = $2, completed_at = $3, updated_at = $4
		WHERE id = $1
		  AND status NOT IN ('completed', 'error')
	`
	result, err := r.pool.Exec(ctx, query, id, status, completedAt, time.Now())
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо execution нет, либо он уже терминален.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}

// Complete переводит execution в completed со штампом времени завершения.
func (r *ExecutionRepo) Complete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.UpdateStatus(ctx, id, domain.ExecutionStatusCompleted, &now)
}

// Fail переводит execution в error со штампом времени завершения.
func (r *ExecutionRepo) Fail(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.UpdateStatus(ctx, id, domain.ExecutionStatusError, &now)
}
