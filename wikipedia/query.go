// Package wikipedia searches Wikipedia through the MediaWiki action API and
// renders the top pages as plain-text summaries for an LLM.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// DefaultEndpoint is the MediaWiki action API; {lang} is replaced by Options.Lang.
	DefaultEndpoint = "https://{lang}.wikipedia.org/w/api.php"

	// DefaultUserAgent identifies the client as Wikimedia's API etiquette asks.
	DefaultUserAgent = "llmkit/1.0 (https://github.com/quells-bot/llmkit)"

	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 8 << 20
)

// SearchResult is one ranked hit from list=search.
type SearchResult struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"` // HTML
}

// Page is a page title with its plain-text introduction.
type Page struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Query runs Wikipedia searches. It holds no state between calls and is safe
// for concurrent use.
type Query struct {
	opts      Options
	http      *http.Client
	endpoint  string
	userAgent string
	log       zerolog.Logger
}

// Option configures a Query.
type Option func(*Query)

// WithHTTPClient sets the HTTP client. The default is http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(q *Query) {
		q.http = c
	}
}

// WithEndpoint replaces the API endpoint template. A "{lang}" placeholder is
// substituted with Options.Lang.
func WithEndpoint(tmpl string) Option {
	return func(q *Query) {
		q.endpoint = tmpl
	}
}

// WithUserAgent replaces DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(q *Query) {
		q.userAgent = ua
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Query) {
		q.log = log
	}
}

// New validates opts and returns a Query.
func New(opts Options, options ...Option) (*Query, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	q := &Query{
		opts:      opts,
		http:      http.DefaultClient,
		endpoint:  DefaultEndpoint,
		userAgent: DefaultUserAgent,
		log:       zerolog.Nop(),
	}
	for _, o := range options {
		o(q)
	}
	if _, err := url.Parse(q.APIURL()); err != nil {
		return nil, &Error{Kind: ErrInvalidConfig, Message: "invalid endpoint", Cause: err}
	}
	q.log = q.log.With().Str("component", "wikipedia").Str("lang", opts.Lang).Logger()
	return q, nil
}

// Options returns the query's options.
func (q *Query) Options() Options { return q.opts }

// APIURL returns the endpoint for the configured language.
func (q *Query) APIURL() string {
	return strings.ReplaceAll(q.endpoint, "{lang}", q.opts.Lang)
}

// Run searches for the query carried by input and returns up to TopKResults
// "Page: ...\nSummary: ...\n\n" blocks in ranking order. input is a string,
// an Input, a map with an "input" key, or the JSON encoding of either.
func (q *Query) Run(ctx context.Context, input any) (string, error) {
	query, err := queryFromInput(input)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", invalidInput("query cannot be empty")
	}

	pages, err := q.Pages(ctx, query)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "No results found for query: " + query, nil
	}
	return Format(pages), nil
}

// Pages searches for query and fetches each hit's summary, truncated to
// MaxDocContentLength characters. Hits without an extract fall back to
// their search snippet. Any failed request fails the whole call.
func (q *Query) Pages(ctx context.Context, query string) ([]Page, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidInput("query cannot be empty")
	}
	hits, err := q.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(hits))
	for _, hit := range hits {
		page, err := q.FetchPage(ctx, hit.Title)
		if err != nil {
			q.log.Warn().Err(err).Str("title", hit.Title).Msg("Failed to fetch page")
			return nil, err
		}
		if strings.TrimSpace(page.Summary) == "" {
			page.Summary = plainText(hit.Snippet)
		}
		if page.PageID == 0 {
			page.PageID = hit.PageID
		}
		page.Summary = truncate(page.Summary, q.opts.MaxDocContentLength)
		pages = append(pages, page)
	}
	return pages, nil
}

// Format renders pages as consecutive "Page: {title}\nSummary: {summary}\n\n" blocks.
func Format(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString("Page: ")
		b.WriteString(p.Title)
		b.WriteString("\nSummary: ")
		b.WriteString(p.Summary)
		b.WriteString("\n\n")
	}
	return b.String()
}

type searchResponse struct {
	Query *struct {
		Search []SearchResult `json:"search"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type extractResponse struct {
	Query *struct {
		Pages map[string]struct {
			PageID  int     `json:"pageid"`
			Title   string  `json:"title"`
			Extract *string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// Search returns up to TopKResults ranked hits for query.
func (q *Query) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(q.opts.TopKResults)},
		"srprop":   {"snippet"},
		"format":   {"json"},
	}
	var sr searchResponse
	if err := q.get(ctx, params, &sr); err != nil {
		return nil, err
	}
	if sr.Error != nil {
		return nil, sr.Error.asError()
	}
	if sr.Query == nil {
		return nil, &Error{Kind: ErrParse, Message: "search response has no query object"}
	}

	hits := sr.Query.Search
	if len(hits) > q.opts.TopKResults {
		hits = hits[:q.opts.TopKResults]
	}
	q.log.Debug().Str("query", query).Int("hits", len(hits)).Msg("Search complete")
	return hits, nil
}

// FetchPage returns the plain-text introduction of the page titled title,
// following redirects. The summary is not truncated and may be empty.
func (q *Query) FetchPage(ctx context.Context, title string) (Page, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"true"},
		"explaintext": {"true"},
		"redirects":   {"1"},
		"titles":      {title},
		"format":      {"json"},
	}
	var er extractResponse
	if err := q.get(ctx, params, &er); err != nil {
		return Page{}, err
	}
	if er.Error != nil {
		return Page{}, er.Error.asError()
	}
	if er.Query != nil {
		// One title in, one page out.
		for _, p := range er.Query.Pages {
			page := Page{PageID: p.PageID, Title: p.Title}
			if page.Title == "" {
				page.Title = title
			}
			if p.Extract != nil {
				page.Summary = *p.Extract
			}
			return page, nil
		}
	}
	return Page{}, &Error{Kind: ErrParse, Message: fmt.Sprintf("page %q not found in extract response", title)}
}

func (q *Query) get(ctx context.Context, params url.Values, v any) error {
	u, err := url.Parse(q.APIURL())
	if err != nil {
		return &Error{Kind: ErrInvalidConfig, Message: "invalid endpoint", Cause: err}
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Kind: ErrTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", q.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		return &Error{Kind: ErrTransport, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Kind: ErrTransport, StatusCode: resp.StatusCode, Message: "reading response body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Kind: ErrTransport, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Kind: ErrParse, StatusCode: resp.StatusCode, Message: "failed to parse response", Cause: err}
	}
	return nil
}

func (e *apiError) asError() error {
	return &Error{Kind: ErrParse, Code: e.Code, Message: e.Info}
}
