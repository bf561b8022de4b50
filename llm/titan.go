package llm

// titanAdapter speaks the Amazon Titan Text format.
type titanAdapter struct{}

func (titanAdapter) Provider() Provider { return ProviderAmazon }

type titanRequest struct {
	InputText            string                `json:"inputText"`
	TextGenerationConfig titanGenerationConfig `json:"textGenerationConfig"`
}

type titanGenerationConfig struct {
	MaxTokenCount int      `json:"maxTokenCount"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences"`
}

type titanResponse struct {
	InputTextTokenCount int           `json:"inputTextTokenCount"`
	Results             []titanResult `json:"results"`
}

type titanResult struct {
	TokenCount       int     `json:"tokenCount"`
	OutputText       *string `json:"outputText"`
	CompletionReason string  `json:"completionReason"`
}

func (a titanAdapter) BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error) {
	stops := cfg.StopSequences
	if stops == nil {
		stops = []string{}
	}
	return buildInput(ProviderAmazon, cfg, titanRequest{
		InputText: prompt,
		TextGenerationConfig: titanGenerationConfig{
			MaxTokenCount: cfg.MaxTokens,
			Temperature:   floatOr(cfg.Temperature, DefaultTemperature),
			TopP:          floatOr(cfg.TopP, defaultTitanTopP),
			StopSequences: stops,
		},
	})
}

func (a titanAdapter) ParseResponse(body []byte) (*Response, error) {
	var tr titanResponse
	if err := decodeBody(ProviderAmazon, body, &tr); err != nil {
		return nil, err
	}
	if len(tr.Results) == 0 || tr.Results[0].OutputText == nil {
		return nil, missingField(ProviderAmazon, "results[0].outputText", body)
	}
	res := tr.Results[0]
	return &Response{
		Provider:     ProviderAmazon,
		Text:         *res.OutputText,
		FinishReason: mapFinishReason(res.CompletionReason),
		Usage:        Usage{InputTokens: tr.InputTextTokenCount, OutputTokens: res.TokenCount},
		Raw:          body,
	}, nil
}
