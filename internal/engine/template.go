package engine

import (
	"regexp"
	"strings"
)

// ReplaceToken — литерал, заменяемый сериализованным результатом
// предыдущего node в конфигурации API и OLLAMA nodes.
const ReplaceToken = "{{ replace }}"

// thinkRE матчит ведущий reasoning-блок моделей вида qwen3.
var thinkRE = regexp.MustCompile(`(?s)^<think>.*?</think>\s*`)

// Inject заменяет первое вхождение ReplaceToken на value.
func Inject(s, value string) string {
	return strings.Replace(s, ReplaceToken, value, 1)
}

// StripThink вырезает ведущий блок <think>...</think> из ответа модели.
func StripThink(s string) string {
	return thinkRE.ReplaceAllString(s, "")
}
