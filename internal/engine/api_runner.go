package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
)

// defaultAPITimeout ограничивает исходящий запрос, чтобы зависший
// внешний сервис не держал prefetch-слот бесконечно.
const defaultAPITimeout = 30 * time.Second

// APIRunner — runner для nodes типа API.
//
// Выполняет HTTP-запрос по конфигурации node. Перед отправкой литерал
// "{{ replace }}" внутри body.embeds[0].description заменяется
// сериализованным результатом предыдущего node.
type APIRunner struct {
	base
	client  *http.Client
	timeout time.Duration
}

// NewAPIRunner создаёт APIRunner.
func NewAPIRunner(store Store, publisher TaskPublisher, logger *slog.Logger) *APIRunner {
	return &APIRunner{
		base: base{
			store:     store,
			publisher: publisher,
			logger:    logger,
		},
		client:  &http.Client{},
		timeout: defaultAPITimeout,
	}
}

// Run выполняет HTTP-запрос и сохраняет ответ как результат node.
//
// Не-2xx ответ — временная ошибка: task вернётся через retry.
func (r *APIRunner) Run(ctx context.Context, task *Task) error {
	cfg, ok := task.Config.(domain.APIConfig)
	if !ok {
		return mq.Fatal(fmt.Errorf("%w: node %s is not API", ErrNodeTypeMismatch, task.Node.ID))
	}

	prev, err := r.previousResult(ctx, task)
	if err != nil {
		return err
	}

	body, err := injectBody(cfg.Body, prev.Result)
	if err != nil {
		return mq.Fatal(fmt.Errorf("render request body: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return mq.Fatal(fmt.Errorf("create request: %w", err))
	}
	for key, val := range cfg.Headers {
		req.Header.Set(key, val)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("api request failed with status %d: %s", resp.StatusCode, resp.Status)
	}

	if len(respBody) == 0 {
		// 204 и пустые 2xx: результат фиксируется как JSON null.
		respBody = []byte("null")
	}
	if !json.Valid(respBody) {
		return fmt.Errorf("api response is not valid JSON")
	}

	r.logger.Info("api request succeeded",
		"execution_id", task.ExecutionID,
		"node_id", task.Node.ID,
		"status", resp.StatusCode,
	)

	return r.finish(ctx, task, respBody)
}

// injectBody подставляет сериализованный результат предыдущего node
// в embeds[0].description тела запроса. Возвращает nil для пустого body.
func injectBody(body map[string]any, prev json.RawMessage) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	// Deep clone через JSON, чтобы не мутировать конфигурацию node.
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var clone map[string]any
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}

	if embeds, ok := clone["embeds"].([]any); ok && len(embeds) > 0 {
		if first, ok := embeds[0].(map[string]any); ok {
			if desc, ok := first["description"].(string); ok {
				first["description"] = StripThink(Inject(desc, string(prev)))
			}
		}
	}

	return json.Marshal(clone)
}
