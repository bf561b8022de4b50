// Package server exposes the Bedrock and Wikipedia adapters over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quells-bot/llmkit/llm"
	"github.com/quells-bot/llmkit/tool"
	"github.com/quells-bot/llmkit/wikipedia"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Generator is satisfied by *llm.Bedrock.
type Generator interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Generate(ctx context.Context, prompts []string) ([]string, error)
}

// Searcher is satisfied by *wikipedia.Query.
type Searcher interface {
	Run(ctx context.Context, input any) (string, error)
}

// Deps are the collaborators behind the routes. Nil fields disable their routes.
type Deps struct {
	LLM     Generator
	Wiki    Searcher
	Tools   *tool.Box
	Metrics http.Handler
	Log     zerolog.Logger
}

// New returns the HTTP handler for d.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(d.Log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("req_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	h := &handlers{deps: d}
	r.Route("/v1", func(r chi.Router) {
		if d.LLM != nil {
			r.Post("/invoke", h.invoke)     // POST /v1/invoke
			r.Post("/generate", h.generate) // POST /v1/generate
		}
		if d.Wiki != nil {
			r.Post("/wikipedia", h.searchWikipedia) // POST /v1/wikipedia
		}
		if d.Tools != nil {
			r.Get("/tools", h.listTools)        // GET /v1/tools
			r.Post("/tools/{name}", h.callTool) // POST /v1/tools/{name}
		}
	})

	return r
}

type handlers struct {
	deps Deps
}

type invokeRequest struct {
	Prompt string `json:"prompt"`
}

type invokeResponse struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Prompts []string `json:"prompts"`
}

type generateResponse struct {
	Generations []string `json:"generations"`
}

type wikipediaResponse struct {
	Result string `json:"result"`
}

type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolResponse struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

func (h *handlers) invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := h.deps.LLM.Invoke(r.Context(), req.Prompt)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Text: text})
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.deps.LLM.Generate(r.Context(), req.Prompts)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Generations: out})
}

// searchWikipedia accepts either a JSON string or an {"input": ...} object.
func (h *handlers) searchWikipedia(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	result, err := h.deps.Wiki.Run(r.Context(), raw)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wikipediaResponse{Result: result})
}

func (h *handlers) listTools(w http.ResponseWriter, _ *http.Request) {
	tools := h.deps.Tools.Tools()
	out := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (h *handlers) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.deps.Tools.Get(name); !ok {
		writeError(w, http.StatusNotFound, "not_found", "tool not found: "+name)
		return
	}
	// An empty body is an empty argument object, as in tool.Box.Call.
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid request body: "+err.Error())
		return
	}
	res := h.deps.Tools.Call(r.Context(), name, raw)
	writeJSON(w, http.StatusOK, toolResponse{Content: res.Content, IsError: res.IsError})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps adapter error kinds to an HTTP status and kind name.
func statusFor(err error) (int, string) {
	var le *llm.Error
	var we *wikipedia.Error
	switch {
	case errors.As(err, &le):
		switch le.Kind {
		case llm.ErrInvalidConfig, llm.ErrInvalidInput:
			return http.StatusBadRequest, le.Kind.String()
		case llm.ErrTransport, llm.ErrParse:
			return http.StatusBadGateway, le.Kind.String()
		}
		return http.StatusInternalServerError, le.Kind.String()
	case errors.As(err, &we):
		switch we.Kind {
		case wikipedia.ErrInvalidConfig, wikipedia.ErrInvalidInput:
			return http.StatusBadRequest, we.Kind.String()
		case wikipedia.ErrTransport, wikipedia.ErrParse:
			return http.StatusBadGateway, we.Kind.String()
		}
		return http.StatusInternalServerError, we.Kind.String()
	}
	return http.StatusInternalServerError, "internal"
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	ev := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Str("kind", kind).Msg("Request failed")
	writeError(w, status, kind, err.Error())
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": message, "kind": kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}
