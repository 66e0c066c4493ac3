package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
)

// defaultOllamaTimeout — потолок на один inference-вызов.
// Локальная модель на CPU может думать долго.
const defaultOllamaTimeout = 2 * time.Minute

// DefaultOllamaModel — модель по умолчанию.
const DefaultOllamaModel = "qwen3:1.7b"

// OllamaRunner — runner для nodes типа OLLAMA.
//
// Подставляет результат предыдущего node в prompt и вызывает
// POST /api/generate со stream=false. Ведущий reasoning-блок
// <think>...</think> вырезается из ответа до записи результата.
type OllamaRunner struct {
	base
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllamaRunner создаёт OllamaRunner.
//
// baseURL — адрес Ollama API (например http://localhost:11434),
// model — идентификатор модели; пустая строка — DefaultOllamaModel.
func NewOllamaRunner(store Store, publisher TaskPublisher, baseURL, model string, logger *slog.Logger) (*OllamaRunner, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	return &OllamaRunner{
		base: base{
			store:     store,
			publisher: publisher,
			logger:    logger,
		},
		client:  api.NewClient(u, http.DefaultClient),
		model:   model,
		timeout: defaultOllamaTimeout,
	}, nil
}

// Run выполняет inference и сохраняет текст ответа как результат node.
func (r *OllamaRunner) Run(ctx context.Context, task *Task) error {
	cfg, ok := task.Config.(domain.OllamaConfig)
	if !ok {
		return mq.Fatal(fmt.Errorf("%w: node %s is not OLLAMA", ErrNodeTypeMismatch, task.Node.ID))
	}

	prev, err := r.previousResult(ctx, task)
	if err != nil {
		return err
	}

	prompt := Inject(cfg.Prompt, string(prev.Result))

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stream := false
	var response string
	err = r.client.Generate(genCtx, &api.GenerateRequest{
		Model:  r.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		response = resp.Response
		return nil
	})
	if err != nil {
		// Ошибки inference (сеть, занятая модель) считаются временными.
		return fmt.Errorf("ollama generate: %w", err)
	}

	result, err := json.Marshal(StripThink(response))
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	r.logger.Info("ollama generate succeeded",
		"execution_id", task.ExecutionID,
		"node_id", task.Node.ID,
		"model", r.model,
	)

	return r.finish(ctx, task, result)
}
