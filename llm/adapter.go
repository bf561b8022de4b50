package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Adapter translates between a prompt and one provider family's native
// InvokeModel format.
type Adapter interface {
	// Provider returns the family this adapter serves.
	Provider() Provider

	// BuildInvokeInput translates a prompt into Bedrock InvokeModel parameters.
	BuildInvokeInput(cfg Config, prompt string) (*InvokeInput, error)

	// ParseResponse extracts the generated text from a raw InvokeModel body.
	ParseResponse(body []byte) (*Response, error)
}

// InvokeInput carries the parameters for a Bedrock InvokeModel call.
type InvokeInput struct {
	ModelID     string // Bedrock model ID
	Body        []byte // serialized JSON in the provider's native format
	ContentType string // e.g., "application/json"
	Accept      string // e.g., "application/json"
}

// BedrockAPI is the subset of *bedrockruntime.Client this package calls.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// AdapterFor returns the adapter for p. Every valid Provider has one.
func AdapterFor(p Provider) (Adapter, error) {
	switch p {
	case ProviderAnthropic:
		return anthropicAdapter{}, nil
	case ProviderAI21:
		return ai21Adapter{}, nil
	case ProviderAmazon:
		return titanAdapter{}, nil
	case ProviderCohere:
		return cohereAdapter{}, nil
	case ProviderMeta:
		return metaAdapter{}, nil
	case ProviderOpenAI:
		return openaiAdapter{}, nil
	case ProviderGeneric:
		return genericAdapter{}, nil
	}
	return nil, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("unsupported model provider %s", p)}
}

// FormatRequest builds the InvokeModel payload for prompt under cfg. It never
// performs I/O; an unresolvable model identifier fails with ErrInvalidConfig.
func FormatRequest(cfg Config, prompt string) (*InvokeInput, error) {
	p, err := cfg.ResolveProvider()
	if err != nil {
		return nil, err
	}
	a, err := AdapterFor(p)
	if err != nil {
		return nil, err
	}
	return a.BuildInvokeInput(cfg, prompt)
}

// ParseResponse extracts the generated text from body for family p.
func ParseResponse(p Provider, body []byte) (string, error) {
	a, err := AdapterFor(p)
	if err != nil {
		return "", err
	}
	resp, err := a.ParseResponse(body)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// buildInput marshals a provider body, overlays cfg.ModelKwargs at the top
// level and wraps it as an InvokeInput.
func buildInput(p Provider, cfg Config, body any) (*InvokeInput, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidConfig, Provider: p.String(), Message: "failed to marshal request", Cause: err}
	}
	if len(cfg.ModelKwargs) > 0 {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &Error{Kind: ErrInvalidConfig, Provider: p.String(), Message: "failed to merge model kwargs", Cause: err}
		}
		for k, v := range cfg.ModelKwargs {
			fields[k] = v
		}
		if raw, err = json.Marshal(fields); err != nil {
			return nil, &Error{Kind: ErrInvalidConfig, Provider: p.String(), Message: "failed to marshal model kwargs", Cause: err}
		}
	}
	return &InvokeInput{
		ModelID:     string(cfg.Model),
		Body:        raw,
		ContentType: "application/json",
		Accept:      "application/json",
	}, nil
}

// decodeBody unmarshals a provider response into v, mapping failures to ErrParse.
func decodeBody(p Provider, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Kind: ErrParse, Provider: p.String(), Message: "failed to unmarshal response", Cause: err, Raw: body}
	}
	return nil
}

func missingField(p Provider, field string, body []byte) error {
	return &Error{Kind: ErrParse, Provider: p.String(), Message: fmt.Sprintf("response has no %s", field), Raw: body}
}

func stopSequences(cfg Config) []string {
	if len(cfg.StopSequences) == 0 {
		return nil
	}
	return cfg.StopSequences
}
