package llm

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// Defaults applied by NewConfig.
const (
	DefaultModel       = AnthropicClaude3Sonnet
	DefaultRegion      = "us-west-2"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
)

// Family defaults used when a body field is mandatory for the provider but
// unset in the Config.
const (
	defaultAI21TopP   = 1.0
	defaultTitanTopP  = 1.0
	defaultCohereTopP = 0.9
	defaultCohereTopK = 0
	defaultMetaTopP   = 0.9
)

// Config holds the model invocation options. It is a value type: every With
// method returns a modified copy and leaves the receiver untouched.
type Config struct {
	Model         Model
	Provider      Provider // zero means infer from Model
	Region        string
	Temperature   *float64
	MaxTokens     int
	TopP          *float64
	TopK          *int
	StopSequences []string       // order is preserved in the request body
	ModelKwargs   map[string]any // merged into the top level of the request body
}

// NewConfig returns a Config populated with the package defaults.
func NewConfig() Config {
	t := DefaultTemperature
	return Config{
		Model:       DefaultModel,
		Region:      DefaultRegion,
		Temperature: &t,
		MaxTokens:   DefaultMaxTokens,
	}
}

func (c Config) clone() Config {
	c.StopSequences = slices.Clone(c.StopSequences)
	c.ModelKwargs = maps.Clone(c.ModelKwargs)
	if c.Temperature != nil {
		v := *c.Temperature
		c.Temperature = &v
	}
	if c.TopP != nil {
		v := *c.TopP
		c.TopP = &v
	}
	if c.TopK != nil {
		v := *c.TopK
		c.TopK = &v
	}
	return c
}

// WithModel sets the model identifier.
func (c Config) WithModel(m Model) Config {
	c = c.clone()
	c.Model = m
	return c
}

// WithProvider forces the provider family instead of inferring it from the
// model identifier. Use ProviderGeneric for custom models.
func (c Config) WithProvider(p Provider) Config {
	c = c.clone()
	c.Provider = p
	return c
}

// WithRegion sets the AWS region used for the lazily created client.
func (c Config) WithRegion(region string) Config {
	c = c.clone()
	c.Region = region
	return c
}

// WithTemperature sets the sampling temperature. The accepted range depends
// on the provider family.
func (c Config) WithTemperature(t float64) Config {
	c = c.clone()
	c.Temperature = &t
	return c
}

// WithMaxTokens caps the number of generated tokens.
func (c Config) WithMaxTokens(n int) Config {
	c = c.clone()
	c.MaxTokens = n
	return c
}

// WithTopP sets nucleus sampling, in [0, 1].
func (c Config) WithTopP(p float64) Config {
	c = c.clone()
	c.TopP = &p
	return c
}

// WithTopK limits sampling to the k most likely tokens. Families without a
// top-k parameter ignore it.
func (c Config) WithTopK(k int) Config {
	c = c.clone()
	c.TopK = &k
	return c
}

// WithStopSequence appends a stop sequence.
func (c Config) WithStopSequence(stop string) Config {
	c = c.clone()
	c.StopSequences = append(c.StopSequences, stop)
	return c
}

// WithModelKwargs replaces the extra body fields.
func (c Config) WithModelKwargs(kwargs map[string]any) Config {
	c = c.clone()
	c.ModelKwargs = maps.Clone(kwargs)
	return c
}

// ResolveProvider returns the explicit Provider if set, otherwise the family
// inferred from Model.
func (c Config) ResolveProvider() (Provider, error) {
	if c.Provider != providerUnset {
		if !c.Provider.valid() {
			return providerUnset, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("invalid provider %d", int(c.Provider))}
		}
		if c.Model == "" {
			return providerUnset, &Error{Kind: ErrInvalidConfig, Message: "model identifier is empty"}
		}
		return c.Provider, nil
	}
	return c.Model.Provider()
}

// maxTemperature is the upper bound accepted by each family.
func maxTemperature(p Provider) float64 {
	switch p {
	case ProviderCohere:
		return 5
	case ProviderOpenAI:
		return 2
	case ProviderGeneric:
		return 100
	default:
		return 1
	}
}

// Validate checks the configuration without performing any I/O.
func (c Config) Validate() error {
	p, err := c.ResolveProvider()
	if err != nil {
		return err
	}
	bad := func(format string, args ...any) error {
		return &Error{Kind: ErrInvalidConfig, Provider: p.String(), Message: fmt.Sprintf(format, args...)}
	}
	// Converse carries max tokens as int32.
	if c.MaxTokens <= 0 || c.MaxTokens > math.MaxInt32 {
		return bad("max tokens must be in [1, %d], got %d", math.MaxInt32, c.MaxTokens)
	}
	if c.Temperature != nil && !inRange(*c.Temperature, 0, maxTemperature(p)) {
		return bad("temperature %v out of range [0, %v]", *c.Temperature, maxTemperature(p))
	}
	if c.TopP != nil && !inRange(*c.TopP, 0, 1) {
		return bad("top_p %v out of range [0, 1]", *c.TopP)
	}
	if c.TopK != nil && (*c.TopK <= 0 || *c.TopK > math.MaxInt32) {
		return bad("top_k must be in [1, %d], got %d", math.MaxInt32, *c.TopK)
	}
	return nil
}

// inRange reports whether v is a finite number in [lo, hi]. NaN is never in range.
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
