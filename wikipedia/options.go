package wikipedia

import (
	"fmt"
	"regexp"
)

// Defaults applied by DefaultOptions.
const (
	DefaultTopKResults         = 3
	DefaultMaxDocContentLength = 4000
	DefaultLang                = "en"
)

var langPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Options controls how many pages a query returns and how much of each
// summary is kept. Like llm.Config it is a value type.
type Options struct {
	TopKResults         int    `yaml:"top_k_results"`
	MaxDocContentLength int    `yaml:"max_doc_content_length"` // in characters
	Lang                string `yaml:"lang"`                   // selects https://{lang}.wikipedia.org
}

// DefaultOptions returns Options populated with the package defaults.
func DefaultOptions() Options {
	return Options{
		TopKResults:         DefaultTopKResults,
		MaxDocContentLength: DefaultMaxDocContentLength,
		Lang:                DefaultLang,
	}
}

// WithTopKResults sets how many search hits are summarized.
func (o Options) WithTopKResults(k int) Options {
	o.TopKResults = k
	return o
}

// WithMaxDocContentLength caps each summary, in characters.
func (o Options) WithMaxDocContentLength(n int) Options {
	o.MaxDocContentLength = n
	return o
}

// WithLang selects the language edition, e.g. "es" for es.wikipedia.org.
func (o Options) WithLang(lang string) Options {
	o.Lang = lang
	return o
}

// Validate checks the limits are positive and the language code is usable
// as a host label.
func (o Options) Validate() error {
	switch {
	case o.TopKResults <= 0:
		return &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("top_k_results must be positive, got %d", o.TopKResults)}
	case o.MaxDocContentLength <= 0:
		return &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("max_doc_content_length must be positive, got %d", o.MaxDocContentLength)}
	case !langPattern.MatchString(o.Lang):
		return &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf("invalid language code %q", o.Lang)}
	}
	return nil
}
