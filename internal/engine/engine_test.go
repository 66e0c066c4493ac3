package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
)

// --- In-memory фейки для Store и TaskPublisher ---

type fakeStore struct {
	mu         sync.Mutex
	nodes      map[string]*domain.Node
	incoming   map[string]domain.Edge   // target node -> edge
	outgoing   map[string][]domain.Edge // source node -> edges
	executions map[uuid.UUID]*domain.Execution
	results    map[string]*domain.NodeResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:      make(map[string]*domain.Node),
		incoming:   make(map[string]domain.Edge),
		outgoing:   make(map[string][]domain.Edge),
		executions: make(map[uuid.UUID]*domain.Execution),
		results:    make(map[string]*domain.NodeResult),
	}
}

func resultKey(executionID uuid.UUID, nodeID string) string {
	return executionID.String() + "/" + nodeID
}

func (s *fakeStore) addNode(n *domain.Node) {
	s.nodes[n.ID] = n
}

func (s *fakeStore) addEdge(id, source, target string) {
	e := domain.Edge{ID: id, SourceNodeID: source, TargetNodeID: target}
	s.incoming[target] = e
	s.outgoing[source] = append(s.outgoing[source], e)
}

func (s *fakeStore) GetNode(_ context.Context, nodeID string) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return n, nil
}

func (s *fakeStore) GetNodes(_ context.Context, nodeIDs []string) ([]domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Node
	for _, id := range nodeIDs {
		if n, ok := s.nodes[id]; ok {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeStore) GetIncomingEdge(_ context.Context, nodeID string) (*domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.incoming[nodeID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &e, nil
}

func (s *fakeStore) ListOutgoingEdges(_ context.Context, nodeID string) ([]domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outgoing[nodeID], nil
}

func (s *fakeStore) GetNodeResult(_ context.Context, executionID uuid.UUID, nodeID string) (*domain.NodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[resultKey(executionID, nodeID)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) InsertNodeResult(_ context.Context, res *domain.NodeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := resultKey(res.ExecutionID, res.NodeID)
	if _, ok := s.results[key]; ok {
		return repo.ErrAlreadyExists
	}
	s.results[key] = res
	return nil
}

func (s *fakeStore) CreateExecution(_ context.Context, e *domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[e.ID] = e
	return nil
}

func (s *fakeStore) CompleteExecution(_ context.Context, executionID uuid.UUID) error {
	return s.setStatus(executionID, domain.ExecutionStatusCompleted)
}

func (s *fakeStore) FailExecution(_ context.Context, executionID uuid.UUID) error {
	return s.setStatus(executionID, domain.ExecutionStatusError)
}

func (s *fakeStore) setStatus(executionID uuid.UUID, status domain.ExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[executionID]
	if !ok {
		return repo.ErrNotFound
	}
	if e.Status.IsTerminal() {
		return repo.ErrInvalidState
	}
	now := time.Now()
	e.Status = status
	e.CompletedAt = &now
	return nil
}

// executionStatus возвращает статус единственного execution в store.
func (s *fakeStore) executionStatus(t *testing.T) domain.ExecutionStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.executions) != 1 {
		t.Fatalf("expected exactly one execution, got %d", len(s.executions))
	}
	for _, e := range s.executions {
		return e.Status
	}
	return ""
}

type published struct {
	key mq.RoutingKey
	msg mq.TaskMessage
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) PublishTask(_ context.Context, key mq.RoutingKey, msg *mq.TaskMessage) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{key: key, msg: *msg})
	return nil
}

type fakeRunner struct {
	calls int
	err   error
}

func (r *fakeRunner) Run(_ context.Context, _ *Task) error {
	r.calls++
	return r.err
}

// --- Хелперы ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeDelivery собирает mq.Delivery из конверта и счётчика retry.
func makeDelivery(t *testing.T, msg *mq.TaskMessage, retries int) *mq.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	return rawDelivery(body, retries)
}

func rawDelivery(body []byte, retries int) *mq.Delivery {
	raw := amqp.Delivery{Body: body}
	if retries > 0 {
		raw.Headers = amqp.Table{"x-retry": int32(retries)}
	}
	return &mq.Delivery{Raw: raw}
}

func webhookNode(id string) *domain.Node {
	return &domain.Node{ID: id, FlowID: "flow-1", Type: domain.NodeTypeWebhook, Data: json.RawMessage(`{}`)}
}

func apiNode(id, url string) *domain.Node {
	data, _ := json.Marshal(map[string]any{
		"url":    url,
		"method": "POST",
		"body":   map[string]any{"embeds": []map[string]any{{"description": "{{ replace }}"}}},
	})
	return &domain.Node{ID: id, FlowID: "flow-1", Type: domain.NodeTypeAPI, Data: data}
}

func ollamaNode(id, prompt string) *domain.Node {
	data, _ := json.Marshal(map[string]string{"prompt": prompt})
	return &domain.Node{ID: id, FlowID: "flow-1", Type: domain.NodeTypeOllama, Data: data}
}
