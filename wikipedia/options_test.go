package wikipedia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/quells-bot/llmkit/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport answers every request with an empty search result and
// keeps the URLs it saw.
type recordingTransport struct {
	urls []string
}

func (rt *recordingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.urls = append(rt.urls, r.URL.String())
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"query":{"search":[]}}`)),
		Request:    r,
	}, nil
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 3, opts.TopKResults)
	assert.Equal(t, 4000, opts.MaxDocContentLength)
	assert.Equal(t, "en", opts.Lang)
	assert.NoError(t, opts.Validate())
}

func TestOptions_WithLeavesReceiverUntouched(t *testing.T) {
	base := DefaultOptions()
	derived := base.WithTopKResults(5).WithMaxDocContentLength(2000).WithLang("fr")
	assert.Equal(t, DefaultOptions(), base)
	assert.Equal(t, Options{TopKResults: 5, MaxDocContentLength: 2000, Lang: "fr"}, derived)
}

func TestOptions_Validate(t *testing.T) {
	for name, opts := range map[string]Options{
		"zero top k":      DefaultOptions().WithTopKResults(0),
		"negative length": DefaultOptions().WithMaxDocContentLength(-1),
		"empty lang":      DefaultOptions().WithLang(""),
		"lang with dot":   DefaultOptions().WithLang("en.evil.com"),
		"lang with slash": DefaultOptions().WithLang("en/x"),
	} {
		err := opts.Validate()
		assert.True(t, IsKind(err, ErrInvalidConfig), name)

		_, err = New(opts)
		assert.True(t, IsKind(err, ErrInvalidConfig), name)
	}
	assert.NoError(t, DefaultOptions().WithLang("zh-yue").Validate())
}

func TestAPIURL(t *testing.T) {
	q, err := New(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org/w/api.php", q.APIURL())

	q, err = New(DefaultOptions().WithLang("es"))
	require.NoError(t, err)
	assert.Equal(t, "https://es.wikipedia.org/w/api.php", q.APIURL())
}

func TestLangChangesOnlyHost(t *testing.T) {
	run := func(lang string) string {
		rt := &recordingTransport{}
		q, err := New(DefaultOptions().WithLang(lang), WithHTTPClient(&http.Client{Transport: rt}))
		require.NoError(t, err)
		_, err = q.Run(context.Background(), "Rust programming language")
		require.NoError(t, err)
		require.Len(t, rt.urls, 1)
		return rt.urls[0]
	}

	en := run("en")
	es := run("es")
	assert.True(t, strings.HasPrefix(en, "https://en.wikipedia.org/w/api.php?"))
	assert.Equal(t, strings.Replace(en, "https://en.", "https://es.", 1), es)
}

func TestWithUserAgent(t *testing.T) {
	var ua string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		ua = r.Header.Get("User-Agent")
		return (&recordingTransport{}).RoundTrip(r)
	})}
	q, err := New(DefaultOptions(), WithHTTPClient(client), WithUserAgent("my-bot/2.0"))
	require.NoError(t, err)

	_, err = q.Search(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "my-bot/2.0", ua)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTool(t *testing.T) {
	q, _ := newFakeQuery(t, DefaultOptions(), fakePage{title: "Go", extract: strPtr("Go is a language.")})
	tl := q.Tool()

	assert.Equal(t, "wikipedia-api", tl.Name)
	assert.Contains(t, tl.Description, "Wikipedia")
	assert.Contains(t, tl.Description, "search query")
	assert.True(t, json.Valid(tl.InputSchema))

	box := tool.NewBox()
	box.Register(tl)

	res := box.Call(context.Background(), ToolName, json.RawMessage(`{"input":"golang"}`))
	assert.False(t, res.IsError)
	assert.Equal(t, "Page: Go\nSummary: Go is a language.\n\n", res.Content)

	res = box.Call(context.Background(), ToolName, json.RawMessage(`"golang"`))
	assert.Equal(t, "Page: Go\nSummary: Go is a language.\n\n", res.Content)

	res = box.Call(context.Background(), ToolName, json.RawMessage(`{"input":""}`))
	assert.True(t, res.IsError)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "plain", plainText("plain"))
	assert.Equal(t, "The Go programming language", plainText(`The <span class="searchmatch">Go</span> programming language`))
	assert.Equal(t, `say "hi"`, plainText("say &quot;hi&quot;"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "héé", truncate("hééllo", 3))
	assert.Equal(t, "", truncate("abc", 0))
}
