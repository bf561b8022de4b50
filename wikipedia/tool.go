package wikipedia

import (
	"context"
	"encoding/json"

	"github.com/quells-bot/llmkit/tool"
)

// ToolName is the name under which Query.Tool registers.
const ToolName = "wikipedia-api"

const toolDescription = "A wrapper around Wikipedia. " +
	"Useful for when you need to answer general questions about " +
	"people, places, companies, facts, historical events, or other subjects. " +
	"Input should be a search query."

// Tool exposes the query as a tool. The input is a JSON string or an object
// with an "input" field.
func (q *Query) Tool() tool.Tool {
	return tool.Tool{
		Name:        ToolName,
		Description: toolDescription,
		InputSchema: json.RawMessage(`{"type":"object","properties":{"input":{"type":"string","description":"Search query"}},"required":["input"]}`),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return q.Run(ctx, input)
		},
	}
}
