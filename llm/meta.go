package llm

// metaAdapter speaks the Meta Llama text format.
type metaAdapter struct{}

func (metaAdapter) Provider() Provider { return ProviderMeta }

type metaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type metaResponse struct {
	Generation           *string `json:"generation"`
	PromptTokenCount     int     `json:"prompt_token_count"`
	GenerationTokenCount int     `json:"generation_token_count"`
	StopReason           string  `json:"stop_reason"`
}

func (a metaAdapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	return buildInput(ProviderMeta, cfg, metaRequest{
		Prompt:      prompt,
		MaxGenLen:   cfg.MaxTokens,
		Temperature: floatOr(cfg.Temperature, DefaultTemperature),
		TopP:        floatOr(cfg.TopP, defaultMetaTopP),
	})
}

func (a metaAdapter) ParseResponse(body []byte) (*Response, error) {
	var mr metaResponse
	if err := decodeBody(ProviderMeta, body, &mr); err != nil {
		return nil, err
	}
	if mr.Generation == nil {
		return nil, missingField(ProviderMeta, "generation", body)
	}
	return &Response{
		Provider:     ProviderMeta,
		Text:         *mr.Generation,
		FinishReason: mapFinishReason(mr.StopReason),
		Usage:        Usage{InputTokens: mr.PromptTokenCount, OutputTokens: mr.GenerationTokenCount},
		Raw:          body,
	}, nil
}
