package llm

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// toConverseInput translates a chat history into a Bedrock ConverseInput.
func toConverseInput(cfg Config, messages []Message) (*bedrockruntime.ConverseInput, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(string(cfg.Model)),
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: m.Content})
		case RoleUser, RoleAssistant:
			role := types.ConversationRoleUser
			if m.Role == RoleAssistant {
				role = types.ConversationRoleAssistant
			}
			block := &types.ContentBlockMemberText{Value: m.Content}
			// Converse requires strict alternation: merge consecutive same-role turns
			if n := len(input.Messages); n > 0 && input.Messages[n-1].Role == role {
				input.Messages[n-1].Content = append(input.Messages[n-1].Content, block)
				continue
			}
			input.Messages = append(input.Messages, types.Message{Role: role, Content: []types.ContentBlock{block}})
		default:
			return nil, &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf("unsupported message role %q", m.Role)}
		}
	}
	if len(input.Messages) == 0 {
		return nil, &Error{Kind: ErrInvalidInput, Message: "conversation has no user or assistant messages"}
	}

	ic := &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(cfg.MaxTokens)),
	}
	if cfg.Temperature != nil {
		ic.Temperature = aws.Float32(float32(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		ic.TopP = aws.Float32(float32(*cfg.TopP))
	}
	if len(cfg.StopSequences) > 0 {
		ic.StopSequences = append([]string(nil), cfg.StopSequences...)
	}
	input.InferenceConfig = ic

	// top_k and kwargs have no InferenceConfiguration field
	extra := make(map[string]any, len(cfg.ModelKwargs)+1)
	if cfg.TopK != nil {
		extra["top_k"] = *cfg.TopK
	}
	for k, v := range cfg.ModelKwargs {
		extra[k] = v
	}
	if len(extra) > 0 {
		input.AdditionalModelRequestFields = document.NewLazyDocument(extra)
	}

	return input, nil
}

// fromConverseOutput translates a Bedrock ConverseOutput into a Response.
func fromConverseOutput(p Provider, out *bedrockruntime.ConverseOutput) (*Response, error) {
	if out == nil {
		return nil, &Error{Kind: ErrParse, Provider: p.String(), Message: "empty converse output"}
	}
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, &Error{Kind: ErrParse, Provider: p.String(), Message: fmt.Sprintf("unexpected output type: %T", out.Output)}
	}

	var b strings.Builder
	var found bool
	for _, block := range msgOut.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(t.Value)
			found = true
		}
	}
	if !found {
		return nil, &Error{Kind: ErrParse, Provider: p.String(), Message: "converse output has no text content"}
	}

	resp := &Response{
		Provider:     p,
		Text:         b.String(),
		FinishReason: mapFinishReason(string(out.StopReason)),
	}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.Usage.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			resp.Usage.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}
	return resp, nil
}

// promptTranscript flattens a chat history for non-Anthropic InvokeModel
// bodies, one "Speaker: text" line per message.
func promptTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		var speaker string
		switch m.Role {
		case RoleSystem:
			speaker = "System"
		case RoleUser:
			speaker = "Human"
		case RoleAssistant:
			speaker = "AI"
		default:
			speaker = string(m.Role)
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
