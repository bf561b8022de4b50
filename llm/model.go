package llm

import (
	"fmt"
	"strings"
)

// Provider identifies a foundation-model family on Bedrock. The set is closed:
// every Provider has exactly one Adapter.
type Provider int

const (
	providerUnset Provider = iota
	ProviderAnthropic
	ProviderAI21
	ProviderAmazon
	ProviderCohere
	ProviderMeta
	ProviderOpenAI
	ProviderGeneric // explicit opt-in for ids with no known prefix
)

var providerNames = [...]string{
	providerUnset:     "",
	ProviderAnthropic: "anthropic",
	ProviderAI21:      "ai21",
	ProviderAmazon:    "amazon",
	ProviderCohere:    "cohere",
	ProviderMeta:      "meta",
	ProviderOpenAI:    "openai",
	ProviderGeneric:   "generic",
}

func (p Provider) String() string {
	if int(p) >= 0 && int(p) < len(providerNames) {
		return providerNames[p]
	}
	return fmt.Sprintf("provider(%d)", p)
}

func (p Provider) valid() bool {
	return p > providerUnset && int(p) < len(providerNames)
}

// ParseProvider maps a family name ("anthropic", "titan", "generic", ...) to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic":
		return ProviderAnthropic, nil
	case "ai21":
		return ProviderAI21, nil
	case "amazon", "titan":
		return ProviderAmazon, nil
	case "cohere":
		return ProviderCohere, nil
	case "meta":
		return ProviderMeta, nil
	case "openai":
		return ProviderOpenAI, nil
	case "generic", "custom":
		return ProviderGeneric, nil
	}
	return providerUnset, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("unknown provider %q", name)}
}

// Model is a Bedrock model identifier. Any string is accepted; the constants
// below are the identifiers known to this package.
type Model string

const (
	AnthropicClaudeV2        Model = "anthropic.claude-v2"
	AnthropicClaudeInstantV1 Model = "anthropic.claude-instant-v1"
	AnthropicClaude3Sonnet   Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	AnthropicClaude3Haiku    Model = "anthropic.claude-3-haiku-20240307-v1:0"
	AnthropicClaude3Opus     Model = "anthropic.claude-3-opus-20240229-v1:0"
	AnthropicClaude35Haiku   Model = "anthropic.claude-3-5-haiku-20241022-v1:0"
	AnthropicClaude4Sonnet   Model = "anthropic.claude-sonnet-4-20250514-v1:0"
	AnthropicClaude45Haiku   Model = "anthropic.claude-haiku-4-5-20251001-v1:0"
	AnthropicClaude41Opus    Model = "anthropic.claude-opus-4-1-20250805-v1:0"
	AnthropicClaude45Opus    Model = "anthropic.claude-opus-4-5-20251101-v1:0"
	AnthropicClaude45Sonnet  Model = "anthropic.claude-sonnet-4-5-20250929-v1:0"

	AI21Jurassic2Mid   Model = "ai21.j2-mid-v1"
	AI21Jurassic2Ultra Model = "ai21.j2-ultra-v1"

	AmazonTitanTextExpress Model = "amazon.titan-text-express-v1"
	AmazonTitanTextLite    Model = "amazon.titan-text-lite-v1"

	CohereCommand      Model = "cohere.command-text-v14"
	CohereCommandLight Model = "cohere.command-light-text-v14"

	MetaLlama2Chat13B Model = "meta.llama2-13b-chat-v1"
	MetaLlama2Chat70B Model = "meta.llama2-70b-chat-v1"

	OpenAIGptOss20B  Model = "openai.gpt-oss-20b-1:0"
	OpenAIGptOss120B Model = "openai.gpt-oss-120b-1:0"
)

var knownModels = []Model{
	AnthropicClaudeV2, AnthropicClaudeInstantV1,
	AnthropicClaude3Sonnet, AnthropicClaude3Haiku, AnthropicClaude3Opus,
	AnthropicClaude35Haiku, AnthropicClaude4Sonnet, AnthropicClaude45Haiku,
	AnthropicClaude41Opus, AnthropicClaude45Opus, AnthropicClaude45Sonnet,
	AI21Jurassic2Mid, AI21Jurassic2Ultra,
	AmazonTitanTextExpress, AmazonTitanTextLite,
	CohereCommand, CohereCommandLight,
	MetaLlama2Chat13B, MetaLlama2Chat70B,
	OpenAIGptOss20B, OpenAIGptOss120B,
}

// KnownModels returns the enumerated model identifiers.
func KnownModels() []Model {
	out := make([]Model, len(knownModels))
	copy(out, knownModels)
	return out
}

// Cross-region inference profile prefixes, e.g. "us.anthropic.claude-...".
var geoPrefixes = []string{"us-gov.", "us.", "eu.", "apac.", "jp.", "au.", "ca.", "global."}

var familyPrefixes = []struct {
	prefix   string
	provider Provider
}{
	{"anthropic.", ProviderAnthropic},
	{"ai21.", ProviderAI21},
	{"amazon.", ProviderAmazon},
	{"cohere.", ProviderCohere},
	{"meta.", ProviderMeta},
	{"openai.", ProviderOpenAI},
}

// baseModelID strips an ARN wrapper and a cross-region profile prefix,
// leaving the "<family>.<model>" form.
func baseModelID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "arn:") {
		if i := strings.LastIndexByte(id, '/'); i >= 0 {
			id = id[i+1:]
		}
	}
	for _, p := range geoPrefixes {
		if rest, ok := strings.CutPrefix(id, p); ok {
			return rest
		}
	}
	return id
}

// Provider infers the model's family from its identifier prefix. It returns
// an ErrInvalidConfig error for empty or unrecognized identifiers.
func (m Model) Provider() (Provider, error) {
	if strings.TrimSpace(string(m)) == "" {
		return providerUnset, &Error{Kind: ErrInvalidConfig, Message: "model identifier is empty"}
	}
	if strings.ContainsAny(string(m), " \t\r\n") {
		return providerUnset, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("malformed model identifier %q", string(m))}
	}
	base := baseModelID(string(m))
	for _, fp := range familyPrefixes {
		if strings.HasPrefix(base, fp.prefix) && len(base) > len(fp.prefix) {
			return fp.provider, nil
		}
	}
	return providerUnset, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("unsupported model provider for %q", string(m))}
}

// usesConverse reports whether the model only accepts the Messages-style API
// (Claude 3 and later) and must go through Converse.
func usesConverse(m Model, p Provider) bool {
	if p != ProviderAnthropic {
		return false
	}
	base := baseModelID(string(m))
	if !strings.Contains(base, "claude") {
		return false
	}
	for _, legacy := range []string{"claude-v1", "claude-v2", "claude-instant"} {
		if strings.Contains(base, legacy) {
			return false
		}
	}
	return true
}
