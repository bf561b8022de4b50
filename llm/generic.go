package llm

import (
	"strconv"
	"strings"
)

// genericAdapter forwards the raw prompt and whichever parameters are set.
// It serves custom model identifiers opted in with ProviderGeneric.
type genericAdapter struct{}

func (genericAdapter) Provider() Provider { return ProviderGeneric }

type genericRequest struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// genericTextPaths are the response locations tried in order, covering the
// families above plus the Mistral-style outputs array.
var genericTextPaths = []string{
	"completion",
	"generation",
	"outputText",
	"text",
	"results.0.outputText",
	"generations.0.text",
	"completions.0.data.text",
	"outputs.0.text",
	"choices.0.message.content",
	"choices.0.text",
}

func (a genericAdapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	return buildInput(ProviderGeneric, cfg, genericRequest{
		Prompt:        prompt,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		TopK:          cfg.TopK,
		StopSequences: stopSequences(cfg),
	})
}

func (a genericAdapter) ParseResponse(body []byte) (*Response, error) {
	var doc any
	if err := decodeBody(ProviderGeneric, body, &doc); err != nil {
		return nil, err
	}
	for _, path := range genericTextPaths {
		if text, ok := lookupString(doc, path); ok {
			return &Response{Provider: ProviderGeneric, Text: text, Raw: body}, nil
		}
	}
	return nil, missingField(ProviderGeneric, "recognizable text field", body)
}

// lookupString walks a dotted path of object keys and array indexes.
func lookupString(doc any, path string) (string, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return "", false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return "", false
			}
			cur = node[i]
		default:
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}
