package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// NodeType — тип node в графе.
type NodeType string

const (
	// NodeTypeAPI — исходящий HTTP-запрос на сконфигурированный URL.
	NodeTypeAPI NodeType = "API"

	// NodeTypeWebhook — входная точка графа; срабатывает на внешний запрос.
	NodeTypeWebhook NodeType = "WEBHOOK"

	// NodeTypeOllama — вызов локального LLM inference через Ollama.
	NodeTypeOllama NodeType = "OLLAMA"
)

// Ошибки валидации node.
var (
	// ErrUnknownNodeType — тип node не входит в поддерживаемый набор.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidConfig — конфигурация node не прошла валидацию.
	ErrInvalidConfig = errors.New("invalid node config")
)

// Node — один шаг графа автоматизации.
type Node struct {
	// ID — идентификатор node (назначается редактором).
	ID string `json:"id"`

	// FlowID — flow, к которому относится node.
	FlowID string `json:"flow_id"`

	// Type — тип node: API, WEBHOOK или OLLAMA.
	Type NodeType `json:"type"`

	// Name — отображаемое имя.
	Name string `json:"name"`

	// Data — сырая конфигурация node (схема зависит от Type).
	Data json.RawMessage `json:"data"`

	// PositionX, PositionY — координаты в редакторе (движком не используются).
	PositionX int `json:"position_x"`
	PositionY int `json:"position_y"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeConfig — типизированная конфигурация node.
//
// Закрытый набор вариантов: APIConfig, OllamaConfig, WebhookConfig.
// Получается из Node.Data через ParseConfig; исчерпывающий switch по
// варианту заменяет проверку "unsupported type" в рантайме.
type NodeConfig interface {
	nodeConfig()
}

// APIConfig — конфигурация node типа API.
type APIConfig struct {
	// URL — адрес запроса (обязательно, http/https).
	URL string `json:"url"`

	// Method — HTTP-метод. Default: GET.
	Method string `json:"method,omitempty"`

	// Headers — заголовки запроса.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса. Литерал "{{ replace }}" внутри
	// embeds[0].description заменяется результатом предыдущего node.
	Body map[string]any `json:"body,omitempty"`
}

func (APIConfig) nodeConfig() {}

// OllamaConfig — конфигурация node типа OLLAMA.
type OllamaConfig struct {
	// Prompt — промпт для модели. Литерал "{{ replace }}" заменяется
	// результатом предыдущего node.
	Prompt string `json:"prompt"`
}

func (OllamaConfig) nodeConfig() {}

// WebhookConfig — конфигурация node типа WEBHOOK.
//
// Конфигурации нет: результатом становится тело входящего запроса.
type WebhookConfig struct{}

func (WebhookConfig) nodeConfig() {}

// allowedMethods — HTTP-методы, разрешённые для API node.
var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"PATCH":  true,
}

// ParseConfig валидирует Node.Data и возвращает типизированную конфигурацию.
//
// Валидация выполняется один раз при загрузке node; дальше по движку
// передаётся уже типизированное значение. Невалидная конфигурация —
// ErrInvalidConfig, неподдерживаемый тип — ErrUnknownNodeType.
func (n *Node) ParseConfig() (NodeConfig, error) {
	switch n.Type {
	case NodeTypeAPI:
		var cfg APIConfig
		if err := json.Unmarshal(n.Data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return cfg, nil

	case NodeTypeOllama:
		var cfg OllamaConfig
		if err := json.Unmarshal(n.Data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if cfg.Prompt == "" {
			return nil, fmt.Errorf("%w: prompt is required", ErrInvalidConfig)
		}
		return cfg, nil

	case NodeTypeWebhook:
		return WebhookConfig{}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, n.Type)
	}
}

// validate проверяет APIConfig и нормализует метод.
func (c *APIConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	u, err := url.ParseRequestURI(c.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", ErrInvalidConfig)
	}

	if c.Method == "" {
		c.Method = "GET"
	}
	if !allowedMethods[c.Method] {
		return fmt.Errorf("%w: method %q is not allowed", ErrInvalidConfig, c.Method)
	}
	return nil
}
