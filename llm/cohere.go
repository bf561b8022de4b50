package llm

// cohereAdapter speaks the Cohere Command text-generation format.
type cohereAdapter struct{}

func (cohereAdapter) Provider() Provider { return ProviderCohere }

type cohereRequest struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   float64  `json:"temperature"`
	P             float64  `json:"p"`
	K             int      `json:"k"`
	StopSequences []string `json:"stop_sequences"`
}

type cohereResponse struct {
	Generations []struct {
		Text         *string `json:"text"`
		FinishReason string  `json:"finish_reason"`
	} `json:"generations"`
}

func (a cohereAdapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	stops := cfg.StopSequences
	if stops == nil {
		stops = []string{}
	}
	return buildInput(ProviderCohere, cfg, cohereRequest{
		Prompt:        prompt,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   floatOr(cfg.Temperature, DefaultTemperature),
		P:             floatOr(cfg.TopP, defaultCohereTopP),
		K:             intOr(cfg.TopK, defaultCohereTopK),
		StopSequences: stops,
	})
}

func (a cohereAdapter) ParseResponse(body []byte) (*Response, error) {
	var cr cohereResponse
	if err := decodeBody(ProviderCohere, body, &cr); err != nil {
		return nil, err
	}
	if len(cr.Generations) == 0 || cr.Generations[0].Text == nil {
		return nil, missingField(ProviderCohere, "generations[0].text", body)
	}
	g := cr.Generations[0]
	return &Response{
		Provider:     ProviderCohere,
		Text:         *g.Text,
		FinishReason: mapFinishReason(g.FinishReason),
		Raw:          body,
	}, nil
}
