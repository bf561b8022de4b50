package llm

// ai21Adapter speaks the AI21 Jurassic-2 format, which names the token
// limit maxTokens.
type ai21Adapter struct{}

func (ai21Adapter) Provider() Provider { return ProviderAI21 }

type ai21Request struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"maxTokens"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

type ai21Response struct {
	Completions []struct {
		Data *struct {
			Text *string `json:"text"`
		} `json:"data"`
		FinishReason struct {
			Reason string `json:"reason"`
		} `json:"finishReason"`
	} `json:"completions"`
}

func (a ai21Adapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	return buildInput(ProviderAI21, cfg, ai21Request{
		Prompt:        prompt,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   floatOr(cfg.Temperature, DefaultTemperature),
		TopP:          floatOr(cfg.TopP, defaultAI21TopP),
		StopSequences: stopSequences(cfg),
	})
}

func (a ai21Adapter) ParseResponse(body []byte) (*Response, error) {
	var ar ai21Response
	if err := decodeBody(ProviderAI21, body, &ar); err != nil {
		return nil, err
	}
	if len(ar.Completions) == 0 || ar.Completions[0].Data == nil || ar.Completions[0].Data.Text == nil {
		return nil, missingField(ProviderAI21, "completions[0].data.text", body)
	}
	c := ar.Completions[0]
	return &Response{
		Provider:     ProviderAI21,
		Text:         *c.Data.Text,
		FinishReason: mapFinishReason(c.FinishReason.Reason),
		Raw:          body,
	}, nil
}
