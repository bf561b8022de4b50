package llm

import "strings"

const (
	humanTurn     = "\n\nHuman:"
	assistantTurn = "\n\nAssistant:"
)

// anthropicAdapter speaks the legacy Anthropic text-completion format used
// by Claude v2 and Claude Instant.
type anthropicAdapter struct{}

func (anthropicAdapter) Provider() Provider { return ProviderAnthropic }

type anthropicRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
}

type anthropicResponse struct {
	Completion *string `json:"completion"`
	StopReason string  `json:"stop_reason"`
}

// FormatAnthropicPrompt wraps prompt in the Human/Assistant turn template.
// Prompts that already carry the Human delimiter are returned unchanged, so
// the function is idempotent.
func FormatAnthropicPrompt(prompt string) string {
	if strings.Contains(prompt, humanTurn) || strings.HasPrefix(prompt, "Human:") {
		return prompt
	}
	return humanTurn + " " + prompt + assistantTurn
}

func (a anthropicAdapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	return buildInput(ProviderAnthropic, cfg, anthropicRequest{
		Prompt:            FormatAnthropicPrompt(prompt),
		MaxTokensToSample: cfg.MaxTokens,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		TopK:              cfg.TopK,
		StopSequences:     stopSequences(cfg),
	})
}

func (a anthropicAdapter) ParseResponse(body []byte) (*Response, error) {
	var ar anthropicResponse
	if err := decodeBody(ProviderAnthropic, body, &ar); err != nil {
		return nil, err
	}
	if ar.Completion == nil {
		return nil, missingField(ProviderAnthropic, "completion", body)
	}
	return &Response{
		Provider:     ProviderAnthropic,
		Text:         *ar.Completion,
		FinishReason: mapFinishReason(ar.StopReason),
		Raw:          body,
	}, nil
}

// anthropicTranscript flattens a chat history into Human/Assistant turns
// ending with an open Assistant turn. System text goes before the first turn.
func anthropicTranscript(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			b.WriteString(m.Content)
		case RoleUser:
			b.WriteString(humanTurn + " " + m.Content)
		case RoleAssistant:
			b.WriteString(assistantTurn + " " + m.Content)
		}
	}
	b.WriteString(assistantTurn)
	return b.String()
}
