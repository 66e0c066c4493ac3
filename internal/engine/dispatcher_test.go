package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
)

func newTestDispatcher(store *fakeStore, webhook, api, ollama Runner) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Store:   store,
		Webhook: webhook,
		API:     api,
		Ollama:  ollama,
		Logger:  testLogger(),
	})
}

func TestDispatcher_MalformedEnvelope(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), &fakeRunner{}, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(), rawDelivery([]byte("not json"), 0))
	if !mq.IsFatal(err) {
		t.Fatalf("malformed envelope should be fatal, got %v", err)
	}
}

func TestDispatcher_MissingNodeID(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), &fakeRunner{}, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(), makeDelivery(t, &mq.TaskMessage{}, 0))
	if !mq.IsFatal(err) {
		t.Fatalf("missing nodeId should be fatal, got %v", err)
	}
	if !errors.Is(err, ErrMissingNodeID) {
		t.Errorf("expected ErrMissingNodeID, got %v", err)
	}
}

func TestDispatcher_UnknownNode(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, &fakeRunner{}, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(), makeDelivery(t, &mq.TaskMessage{NodeID: "ghost"}, 0))
	if !mq.IsFatal(err) {
		t.Fatalf("unknown node should be fatal, got %v", err)
	}
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
	// Execution не создаётся для несуществующего node.
	if len(store.executions) != 0 {
		t.Errorf("no execution should be created, got %d", len(store.executions))
	}
}

func TestDispatcher_InvalidConfig_FailsExecution(t *testing.T) {
	store := newFakeStore()
	store.addNode(&domain.Node{ID: "bad", FlowID: "flow-1", Type: domain.NodeTypeAPI, Data: json.RawMessage(`{}`)})

	execution := domain.NewExecution("flow-1")
	store.CreateExecution(context.Background(), execution)

	d := newTestDispatcher(store, &fakeRunner{}, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(),
		makeDelivery(t, &mq.TaskMessage{NodeID: "bad", ExecutionID: &execution.ID}, 0))
	if !mq.IsFatal(err) {
		t.Fatalf("invalid config should be fatal, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if store.executionStatus(t) != domain.ExecutionStatusError {
		t.Errorf("execution should be marked as error, got %s", store.executionStatus(t))
	}
}

func TestDispatcher_RootCreatesExecution(t *testing.T) {
	store := newFakeStore()
	store.addNode(webhookNode("hook-1"))

	webhook := NewWebhookRunner(store, &fakePublisher{}, testLogger())
	d := newTestDispatcher(store, webhook, &fakeRunner{}, &fakeRunner{})

	// Task без executionId — входная точка графа.
	err := d.Handle(context.Background(),
		makeDelivery(t, &mq.TaskMessage{NodeID: "hook-1", Body: json.RawMessage(`{"user":"bob"}`)}, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Нет исходящих edges: execution создан и сразу завершён.
	if got := store.executionStatus(t); got != domain.ExecutionStatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}

	// Результат webhook node — тело триггера.
	if len(store.results) != 1 {
		t.Fatalf("expected one node result, got %d", len(store.results))
	}
	for _, r := range store.results {
		if string(r.Result) != `{"user":"bob"}` {
			t.Errorf("unexpected result: %s", r.Result)
		}
	}
}

func TestDispatcher_DuplicateDelivery(t *testing.T) {
	store := newFakeStore()
	store.addNode(webhookNode("hook-1"))

	execution := domain.NewExecution("flow-1")
	store.CreateExecution(context.Background(), execution)
	store.InsertNodeResult(context.Background(),
		domain.NewNodeResult(execution.ID, "hook-1", json.RawMessage(`{}`)))

	webhook := &fakeRunner{}
	d := newTestDispatcher(store, webhook, &fakeRunner{}, &fakeRunner{})

	// Повторная доставка того же task: ack без выполнения.
	err := d.Handle(context.Background(),
		makeDelivery(t, &mq.TaskMessage{NodeID: "hook-1", ExecutionID: &execution.ID}, 0))
	if err != nil {
		t.Fatalf("duplicate delivery should be acked, got %v", err)
	}
	if webhook.calls != 0 {
		t.Errorf("runner should not run for duplicate, got %d calls", webhook.calls)
	}
}

func TestDispatcher_TransientError_Propagates(t *testing.T) {
	store := newFakeStore()
	store.addNode(webhookNode("hook-1"))

	execution := domain.NewExecution("flow-1")
	store.CreateExecution(context.Background(), execution)

	webhook := &fakeRunner{err: errors.New("broker hiccup")}
	d := newTestDispatcher(store, webhook, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(),
		makeDelivery(t, &mq.TaskMessage{NodeID: "hook-1", ExecutionID: &execution.ID}, 2))
	if err == nil || mq.IsFatal(err) {
		t.Fatalf("transient error should propagate as non-fatal, got %v", err)
	}
	// Execution остаётся running — task вернётся через retry.
	if got := store.executionStatus(t); got != domain.ExecutionStatusRunning {
		t.Errorf("execution should stay running, got %s", got)
	}
}

func TestDispatcher_RetryExhausted(t *testing.T) {
	store := newFakeStore()
	store.addNode(webhookNode("hook-1"))

	execution := domain.NewExecution("flow-1")
	store.CreateExecution(context.Background(), execution)

	webhook := &fakeRunner{err: errors.New("still failing")}
	d := newTestDispatcher(store, webhook, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(),
		makeDelivery(t, &mq.TaskMessage{NodeID: "hook-1", ExecutionID: &execution.ID}, defaultMaxRetries))
	if !mq.IsFatal(err) {
		t.Fatalf("exhausted retries should be fatal, got %v", err)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected ErrRetryExhausted, got %v", err)
	}
	if got := store.executionStatus(t); got != domain.ExecutionStatusError {
		t.Errorf("execution should be marked as error, got %s", got)
	}
}

func TestDispatcher_FatalRunnerError_FailsExecution(t *testing.T) {
	store := newFakeStore()
	store.addNode(webhookNode("hook-1"))

	execution := domain.NewExecution("flow-1")
	store.CreateExecution(context.Background(), execution)

	webhook := &fakeRunner{err: mq.Fatal(errors.New("broken graph"))}
	d := newTestDispatcher(store, webhook, &fakeRunner{}, &fakeRunner{})

	err := d.Handle(context.Background(),
		makeDelivery(t, &mq.TaskMessage{NodeID: "hook-1", ExecutionID: &execution.ID}, 0))
	if !mq.IsFatal(err) {
		t.Fatalf("fatal runner error should stay fatal, got %v", err)
	}
	if got := store.executionStatus(t); got != domain.ExecutionStatusError {
		t.Errorf("execution should be marked as error, got %s", got)
	}
}

func TestDispatcher_RoutesByConfigType(t *testing.T) {
	store := newFakeStore()
	store.addNode(webhookNode("hook-1"))
	store.addNode(apiNode("api-1", "http://localhost:9000/x"))
	store.addNode(ollamaNode("llm-1", "hi"))
	store.addEdge("e1", "hook-1", "api-1")
	store.addEdge("e2", "hook-1", "llm-1")

	execution := domain.NewExecution("flow-1")
	store.CreateExecution(context.Background(), execution)

	webhook := &fakeRunner{}
	api := &fakeRunner{}
	ollama := &fakeRunner{}
	d := newTestDispatcher(store, webhook, api, ollama)

	for _, nodeID := range []string{"hook-1", "api-1", "llm-1"} {
		if err := d.Handle(context.Background(),
			makeDelivery(t, &mq.TaskMessage{NodeID: nodeID, ExecutionID: &execution.ID}, 0)); err != nil {
			t.Fatalf("unexpected error for %s: %v", nodeID, err)
		}
	}

	if webhook.calls != 1 || api.calls != 1 || ollama.calls != 1 {
		t.Errorf("expected one call per runner, got webhook=%d api=%d ollama=%d",
			webhook.calls, api.calls, ollama.calls)
	}
}
