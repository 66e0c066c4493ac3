package domain

import "time"

// Flow — пользовательский граф автоматизации.
//
// Создаётся и редактируется визуальным редактором (внешний компонент);
// движку нужен только ID для привязки executions.
type Flow struct {
	// ID — идентификатор flow (назначается редактором).
	ID string `json:"id"`

	// UserID — владелец flow.
	UserID string `json:"user_id"`

	// Name — имя flow.
	Name string `json:"name"`

	// Description — описание (опционально).
	Description string `json:"description,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge — направленная связь между двумя nodes одного flow.
//
// Инвариант: source и target принадлежат тому же flow, что и сам edge.
type Edge struct {
	// ID — идентификатор edge.
	ID string `json:"id"`

	// FlowID — flow, к которому относится edge.
	FlowID string `json:"flow_id"`

	// SourceNodeID — node, из которого выходит edge.
	SourceNodeID string `json:"source_node_id"`

	// TargetNodeID — node, в который входит edge.
	TargetNodeID string `json:"target_node_id"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}
