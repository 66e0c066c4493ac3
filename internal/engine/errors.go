package engine

import "errors"

// Ошибки движка выполнения.
var (
	// ErrMissingNodeID — в сообщении нет nodeId.
	ErrMissingNodeID = errors.New("nodeId is missing")

	// ErrNodeNotFound — node не найден в БД.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoIncomingEdge — у node, требующего результат предшественника,
	// нет входящего edge.
	ErrNoIncomingEdge = errors.New("no incoming edge")

	// ErrNoPreviousResult — результат предыдущего node отсутствует,
	// хотя порядок publish-after-persist гарантирует его наличие.
	ErrNoPreviousResult = errors.New("no previous node result")

	// ErrNodeTypeMismatch — runner получил node чужого типа
	// (нарушение инварианта маршрутизации).
	ErrNodeTypeMismatch = errors.New("node type mismatch")

	// ErrRetryExhausted — попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
