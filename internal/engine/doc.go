// Package engine — асинхронный движок выполнения графов.
//
// # Обзор
//
// Движок превращает каждое доставленное task-сообщение ровно в одно
// выполнение node:
//
//	task → Dispatcher → Runner → запись NodeResult → fan-out в очереди
//
// Поток управления: внешний триггер публикует task входного node; consumer
// доставляет его диспетчеру; диспетчер выполняет node через Runner его
// типа; Runner сохраняет результат и публикует по одному новому task на
// каждый исходящий edge — пока все ветки не дойдут до терминальных nodes.
//
// # Dispatcher
//
// Конечный автомат на каждое сообщение:
//
//	Received → Validated → Idempotency-Checked → Node-Loaded →
//	Execution-Resolved → Dispatched → {Acked | Nacked(fatal) | Nacked(transient)}
//
// Идемпотентность: существующий NodeResult для (executionId, nodeId)
// означает дубликат доставки — ack без повторного выполнения. Это граница
// дедупликации при at-least-once; внешний эффект (сам HTTP-вызов) при
// крахе между эффектом и записью результата может повториться.
//
// # Runners
//
// По одному на тип node:
//   - WebhookRunner — входная точка; результат — тело триггера
//   - APIRunner     — исходящий HTTP-запрос с подстановкой "{{ replace }}"
//   - OllamaRunner  — LLM inference через Ollama, "<think>" вырезается
//
// Общий контракт завершения: результат сохраняется ДО публикации дочерних
// tasks, поэтому к моменту выполнения потомка результат родителя
// гарантированно существует. Node без исходящих edges закрывает execution
// (completed).
//
// # Ошибки
//
// Фатальные (mq.Fatal): битое сообщение, отсутствующая сущность,
// невалидная конфигурация — в DLQ без retry, execution помечается error.
// Временные (всё остальное): переиздание с инкрементом счётчика; после
// исчерпания попыток — DLQ и error.
package engine
