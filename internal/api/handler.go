package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
)

// maxWebhookBody ограничивает размер тела триггера.
const maxWebhookBody = 1 << 20 // 1 MiB

// TaskPublisher публикует task-сообщения. Реализуется mq.Publisher;
// в тестах подменяется фейком.
type TaskPublisher interface {
	PublishTask(ctx context.Context, routingKey mq.RoutingKey, msg *mq.TaskMessage) error
}

// Handler обрабатывает HTTP-запросы cascade-server.
type Handler struct {
	publisher  TaskPublisher
	executions *repo.ExecutionRepo
	results    *repo.ResultRepo
	logger     *slog.Logger
}

// Config — конфигурация Handler.
type Config struct {
	Publisher  TaskPublisher
	Executions *repo.ExecutionRepo
	Results    *repo.ResultRepo
	Logger     *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		publisher:  cfg.Publisher,
		executions: cfg.Executions,
		results:    cfg.Results,
		logger:     logger,
	}
}

// Webhook — входной триггер графа.
//
// Публикует task {nodeId: webhook_id, body: <тело запроса>} в
// webhook.request и отвечает 202: дальнейшая обработка асинхронна.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	webhookID := r.PathValue("webhook_id")
	if webhookID == "" {
		BadRequest(w, "invalid webhook ID")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		BadRequest(w, "request body must be valid JSON")
		return
	}

	msg := &mq.TaskMessage{
		NodeID: webhookID,
		Body:   body,
	}
	if err := h.publisher.PublishTask(r.Context(), mq.RoutingKeyWebhook, msg); err != nil {
		BadGateway(w, h.logger, err)
		return
	}

	h.logger.Info("webhook accepted", "node_id", webhookID)
	Accepted(w, map[string]string{"nodeId": webhookID})
}

// GetExecution возвращает execution по ID.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution ID")
		return
	}

	execution, err := h.executions.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, execution)
}

// ListExecutionResults возвращает результаты nodes одного execution.
func (h *Handler) ListExecutionResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution ID")
		return
	}

	results, err := h.results.ListByExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	List(w, results, len(results))
}
