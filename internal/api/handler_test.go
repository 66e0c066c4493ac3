package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shaiso/Cascade/internal/mq"
)

type fakePublisher struct {
	err  error
	key  mq.RoutingKey
	last *mq.TaskMessage
}

func (p *fakePublisher) PublishTask(_ context.Context, key mq.RoutingKey, msg *mq.TaskMessage) error {
	if p.err != nil {
		return p.err
	}
	p.key = key
	p.last = msg
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer поднимает httptest сервер с маршрутами handler'а,
// чтобы работал PathValue.
func newTestServer(t *testing.T, pub *fakePublisher) *httptest.Server {
	t.Helper()
	handler := NewHandler(Config{
		Publisher: pub,
		Logger:    testLogger(),
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWebhook_Accepted(t *testing.T) {
	pub := &fakePublisher{}
	server := newTestServer(t, pub)

	resp, err := http.Post(server.URL+"/webhook/hook-1", "application/json",
		strings.NewReader(`{"event":"push"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	// Обработка асинхронна: ответ сразу 202.
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	if pub.key != mq.RoutingKeyWebhook {
		t.Errorf("expected routing key %s, got %s", mq.RoutingKeyWebhook, pub.key)
	}
	if pub.last == nil || pub.last.NodeID != "hook-1" {
		t.Fatalf("expected task for hook-1, got %+v", pub.last)
	}
	if string(pub.last.Body) != `{"event":"push"}` {
		t.Errorf("trigger body should be forwarded, got %s", pub.last.Body)
	}
	if pub.last.ExecutionID != nil {
		t.Error("trigger task must not carry execution id")
	}

	var dr struct {
		Data struct {
			NodeID string `json:"nodeId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dr.Data.NodeID != "hook-1" {
		t.Errorf("unexpected response: %+v", dr)
	}
}

func TestWebhook_EmptyBody(t *testing.T) {
	pub := &fakePublisher{}
	server := newTestServer(t, pub)

	resp, err := http.Post(server.URL+"/webhook/hook-1", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(pub.last.Body) != 0 {
		t.Errorf("empty trigger should publish empty body, got %s", pub.last.Body)
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	pub := &fakePublisher{}
	server := newTestServer(t, pub)

	resp, err := http.Post(server.URL+"/webhook/hook-1", "application/json",
		strings.NewReader("{broken"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if pub.last != nil {
		t.Error("nothing should be published for invalid JSON")
	}
}

func TestWebhook_BrokerUnavailable(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	server := newTestServer(t, pub)

	resp, err := http.Post(server.URL+"/webhook/hook-1", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var er struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if er.Error.Code != string(ErrCodeUpstream) {
		t.Errorf("expected %s, got %s", ErrCodeUpstream, er.Error.Code)
	}
}

func TestGetExecution_InvalidID(t *testing.T) {
	server := newTestServer(t, &fakePublisher{})

	resp, err := http.Get(server.URL + "/api/v1/executions/not-a-uuid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
