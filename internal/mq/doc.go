// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — менеджер соединения (state machine, reconnect, flow control)
//   - topology.go   — объявление exchange, очередей и bindings
//   - publisher.go  — публикация task-сообщений
//   - consumer.go   — подписка на очередь с ручным ack и классификацией ошибок
//   - errors.go     — маркер фатальных ошибок обработки
//
// Все tasks идут через один durable topic exchange "task_exchange".
// Routing keys (по одному на тип node):
//   - webhook.request → webhook_queue
//   - api.request     → api_queue
//   - ollama.request  → ollama_queue
//
// Семантика доставки — at-least-once: ack происходит только после полной
// обработки. Фатальные ошибки уходят в DLQ без requeue; временные —
// переиздаются с инкрементом счётчика попыток.
package mq
