package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/quells-bot/llmkit/tool"
)

// ToolName is the name under which Bedrock.Tool registers.
const ToolName = "bedrock-invoke"

type toolInput struct {
	Prompt  string   `json:"prompt"`
	Prompts []string `json:"prompts"`
}

// Tool exposes the client as a tool. The input carries either a single
// "prompt" or a "prompts" batch; batch outputs are separated by blank lines.
func (b *Bedrock) Tool() tool.Tool {
	return tool.Tool{
		Name:        ToolName,
		Description: "Generate text with the " + string(b.cfg.Model) + " model on Amazon Bedrock. Input is a prompt.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string","description":"Prompt to send to the model"},"prompts":{"type":"array","items":{"type":"string"},"description":"Prompts to run in order"}}}`),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in toolInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", &Error{Kind: ErrInvalidInput, Message: "invalid tool input", Cause: err}
			}
			if len(in.Prompts) > 0 {
				out, err := b.Generate(ctx, in.Prompts)
				if err != nil {
					return "", err
				}
				return strings.Join(out, "\n\n"), nil
			}
			return b.Invoke(ctx, in.Prompt)
		},
	}
}
