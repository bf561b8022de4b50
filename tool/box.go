package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Result is the outcome of a Box.Call.
type Result struct {
	Content string
	IsError bool
}

// Box is a registry of tools keyed by name. It is safe for concurrent use.
type Box struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewBox creates an empty Box.
func NewBox() *Box {
	return &Box{tools: make(map[string]Tool)}
}

// Register adds tools to the Box, replacing any with the same name.
func (b *Box) Register(tools ...Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tools {
		b.tools[t.Name] = t
	}
}

// Get returns a tool by name.
func (b *Box) Get(name string) (Tool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tools[name]
	return t, ok
}

// Tools returns the registered tools sorted by name.
func (b *Box) Tools() []Tool {
	b.mu.RLock()
	result := make([]Tool, 0, len(b.tools))
	for _, t := range b.tools {
		result = append(result, t)
	}
	b.mu.RUnlock()

	slices.SortFunc(result, func(a, b Tool) int { return strings.Compare(a.Name, b.Name) })
	return result
}

// Call runs the named tool. Unknown tools and handler failures come back as
// a Result with IsError set rather than as a Go error.
func (b *Box) Call(ctx context.Context, name string, input json.RawMessage) Result {
	t, ok := b.Get(name)
	if !ok {
		return Result{Content: fmt.Sprintf("tool not found: %s", name), IsError: true}
	}
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	out, err := t.Handler(ctx, input)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}
	}
	return Result{Content: out}
}
