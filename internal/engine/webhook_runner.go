package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
)

// WebhookRunner — runner для nodes типа WEBHOOK.
//
// Webhook — всегда входная точка графа: зависимости от предыдущего node
// нет, результатом становится тело внешнего запроса как есть.
type WebhookRunner struct {
	base
}

// NewWebhookRunner создаёт WebhookRunner.
func NewWebhookRunner(store Store, publisher TaskPublisher, logger *slog.Logger) *WebhookRunner {
	return &WebhookRunner{base: base{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}}
}

// Run сохраняет тело триггера как результат node и выполняет fan-out.
func (r *WebhookRunner) Run(ctx context.Context, task *Task) error {
	if _, ok := task.Config.(domain.WebhookConfig); !ok {
		return mq.Fatal(fmt.Errorf("%w: node %s is not WEBHOOK", ErrNodeTypeMismatch, task.Node.ID))
	}

	result := task.Body
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}

	return r.finish(ctx, task, result)
}
