package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quells-bot/llmkit/llm"
	"github.com/quells-bot/llmkit/tool"
	"github.com/quells-bot/llmkit/wikipedia"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) Invoke(_ context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "echo: " + prompt, nil
}

func (f *fakeGenerator) Generate(ctx context.Context, prompts []string) ([]string, error) {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		s, err := f.Invoke(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeSearcher struct {
	inputs []any
	err    error
}

func (f *fakeSearcher) Run(_ context.Context, input any) (string, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return "", f.err
	}
	return "Page: Go\nSummary: A language.\n\n", nil
}

func newTestServer(t *testing.T, d Deps) *httptest.Server {
	t.Helper()
	d.Log = zerolog.Nop()
	srv := httptest.NewServer(New(d))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvoke(t *testing.T) {
	srv := newTestServer(t, Deps{LLM: &fakeGenerator{}})

	status, body := post(t, srv, "/v1/invoke", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "echo: hi", body["text"])
}

func TestGenerate(t *testing.T) {
	srv := newTestServer(t, Deps{LLM: &fakeGenerator{}})

	status, body := post(t, srv, "/v1/generate", `{"prompts":["a","b","c"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"echo: a", "echo: b", "echo: c"}, body["generations"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid input", &llm.Error{Kind: llm.ErrInvalidInput, Message: "prompt is empty"}, http.StatusBadRequest, "invalid_input"},
		{"invalid config", &llm.Error{Kind: llm.ErrInvalidConfig, Message: "bad model"}, http.StatusBadRequest, "invalid_config"},
		{"transport", &llm.Error{Kind: llm.ErrTransport, Code: llm.CodeRateLimit, Message: "slow down"}, http.StatusBadGateway, "transport"},
		{"parse", &llm.Error{Kind: llm.ErrParse, Message: "no completion"}, http.StatusBadGateway, "parse"},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{LLM: &fakeGenerator{err: tt.err}})
			status, body := post(t, srv, "/v1/invoke", `{"prompt":"hi"}`)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, body["kind"])
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestBadBody(t *testing.T) {
	srv := newTestServer(t, Deps{LLM: &fakeGenerator{}})
	status, body := post(t, srv, "/v1/invoke", `{"prompt":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body["kind"])
}

func TestWikipedia(t *testing.T) {
	wiki := &fakeSearcher{}
	srv := newTestServer(t, Deps{Wiki: wiki})

	status, body := post(t, srv, "/v1/wikipedia", `{"input":"golang"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Page: Go\nSummary: A language.\n\n", body["result"])

	status, _ = post(t, srv, "/v1/wikipedia", `"golang"`)
	assert.Equal(t, http.StatusOK, status)

	require.Len(t, wiki.inputs, 2)
	assert.JSONEq(t, `{"input":"golang"}`, string(wiki.inputs[0].(json.RawMessage)))
	assert.JSONEq(t, `"golang"`, string(wiki.inputs[1].(json.RawMessage)))
}

func TestWikipediaErrors(t *testing.T) {
	wiki := &fakeSearcher{err: &wikipedia.Error{Kind: wikipedia.ErrTransport, StatusCode: 503, Message: "down"}}
	srv := newTestServer(t, Deps{Wiki: wiki})

	status, body := post(t, srv, "/v1/wikipedia", `"golang"`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "transport", body["kind"])

	wiki.err = &wikipedia.Error{Kind: wikipedia.ErrInvalidInput, Message: "query cannot be empty"}
	status, body = post(t, srv, "/v1/wikipedia", `""`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body["kind"])
}

func TestDisabledRoutes(t *testing.T) {
	srv := newTestServer(t, Deps{})
	for _, path := range []string{"/v1/invoke", "/v1/generate", "/v1/wikipedia"} {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTools(t *testing.T) {
	box := tool.NewBox()
	box.Register(tool.Tool{
		Name:        "echo",
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, in json.RawMessage) (string, error) {
			return string(in), nil
		},
	})
	srv := newTestServer(t, Deps{Tools: box})

	resp, err := http.Get(srv.URL + "/v1/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list struct {
		Tools []toolInfo `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "echo", list.Tools[0].Name)

	status, body := post(t, srv, "/v1/tools/echo", `{"x":1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_error"])
	assert.JSONEq(t, `{"x":1}`, body["content"].(string))

	status, body = post(t, srv, "/v1/tools/echo", ``)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_error"])
	assert.JSONEq(t, `{}`, body["content"].(string))

	status, body = post(t, srv, "/v1/tools/echo", `{"x":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body["kind"])

	status, body = post(t, srv, "/v1/tools/missing", `{}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["kind"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	llm.NewMetrics(reg)
	srv := newTestServer(t, Deps{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
