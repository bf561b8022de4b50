package llm

// openaiAdapter speaks the Chat Completions format used by the gpt-oss
// models hosted on Bedrock.
type openaiAdapter struct{}

func (openaiAdapter) Provider() Provider { return ProviderOpenAI }

type openaiRequest struct {
	Messages            []openaiMessage `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (a openaiAdapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	return buildInput(ProviderOpenAI, cfg, openaiRequest{
		Messages:            []openaiMessage{{Role: "user", Content: prompt}},
		MaxCompletionTokens: cfg.MaxTokens,
		Temperature:         cfg.Temperature,
		TopP:                cfg.TopP,
		Stop:                stopSequences(cfg),
	})
}

func (a openaiAdapter) ParseResponse(body []byte) (*Response, error) {
	var or openaiResponse
	if err := decodeBody(ProviderOpenAI, body, &or); err != nil {
		return nil, err
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == nil {
		return nil, missingField(ProviderOpenAI, "choices[0].message.content", body)
	}
	choice := or.Choices[0]
	return &Response{
		Provider:     ProviderOpenAI,
		Text:         *choice.Message.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage:        Usage{InputTokens: or.Usage.PromptTokens, OutputTokens: or.Usage.CompletionTokens},
		Raw:          body,
	}, nil
}
