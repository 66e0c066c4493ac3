// Package domain содержит сущности системы Cascade.
//
// Граф автоматизации:
//   - Flow   — контейнер графа (принадлежит пользователю, редактируется извне)
//   - Node   — один шаг графа; типизирован как API, WEBHOOK или OLLAMA
//   - Edge   — направленная связь между двумя nodes одного flow
//
// Выполнение:
//   - Execution  — один запуск графа (создаётся при входном событии)
//   - NodeResult — результат выполнения одного node в рамках execution;
//     уникален по паре (execution_id, node_id) — это контракт идемпотентности
//
// Конфигурация node хранится как JSON и валидируется один раз при загрузке
// в типизированный вариант (APIConfig, OllamaConfig, WebhookConfig).
package domain
