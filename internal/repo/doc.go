// Package repo — доступ к PostgreSQL через pgx.
//
// По одному репозиторию на таблицу:
//   - NodeRepo      — nodes
//   - EdgeRepo      — edges
//   - ExecutionRepo — executions
//   - ResultRepo    — node_results
//
// Store агрегирует репозитории в единый набор операций, который требуется
// движку выполнения (см. internal/engine).
//
// Ключевые гарантии на уровне SQL:
//   - node_results уникальны по (execution_id, node_id); вставка дубликата
//     возвращает ErrAlreadyExists
//   - статус execution монотонен: терминальный статус не перезаписывается
package repo
