package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus — статус одного запуска графа.
//
// Жизненный цикл (монотонный, терминальные статусы не переоткрываются):
//
//	pending → running → completed
//	                  ↘ error
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, но ещё не начался.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning — граф выполняется.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusCompleted — ветка графа дошла до терминального node.
	ExecutionStatusCompleted ExecutionStatus = "completed"

	// ExecutionStatusError — один из nodes завершился фатально.
	ExecutionStatusError ExecutionStatus = "error"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusError:
		return true
	default:
		return false
	}
}

// Execution — один запуск графа.
//
// Создаётся ровно один раз — диспетчером, когда приходит task без
// executionId (входная точка графа). Все последующие tasks этого запуска
// несут его ID.
type Execution struct {
	// ID — идентификатор execution (выдаётся движком).
	ID uuid.UUID `json:"id"`

	// FlowID — flow, который выполняется.
	FlowID string `json:"flow_id"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (успешного или с ошибкой).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewExecution создаёт execution в статусе running для указанного flow.
func NewExecution(flowID string) *Execution {
	now := time.Now()
	return &Execution{
		ID:        uuid.New(),
		FlowID:    flowID,
		Status:    ExecutionStatusRunning,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NodeResult — результат выполнения одного node в рамках execution.
//
// Append-only: строка создаётся ровно один раз и не мутируется.
// Уникальность по (ExecutionID, NodeID) — контракт дедупликации
// при at-least-once доставке.
type NodeResult struct {
	// ID — идентификатор результата.
	ID uuid.UUID `json:"id"`

	// ExecutionID — execution, к которому относится результат.
	ExecutionID uuid.UUID `json:"execution_id"`

	// NodeID — node, который произвёл результат.
	NodeID string `json:"node_id"`

	// Result — результат node в сериализованном виде.
	Result json.RawMessage `json:"result"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewNodeResult создаёт NodeResult для пары (executionID, nodeID).
func NewNodeResult(executionID uuid.UUID, nodeID string, result json.RawMessage) *NodeResult {
	return &NodeResult{
		ID:          uuid.New(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Result:      result,
		CreatedAt:   time.Now(),
	}
}
