package llm

import "strings"

// Role represents a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single text turn in a chat history.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage creates a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// FinishReason describes why generation stopped.
type FinishReason struct {
	Reason string // unified: "stop", "length", "content_filter", or the raw value
	Raw    string // provider's native string
}

const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

// mapFinishReason folds the per-family stop reasons into the unified values.
func mapFinishReason(raw string) FinishReason {
	var reason string
	switch strings.ToLower(raw) {
	case "stop_sequence", "end_turn", "stop", "finish", "complete", "endoftext", "end_of_text":
		reason = FinishReasonStop
	case "max_tokens", "length", "max_tokens_reached", "model_context_window_exceeded":
		reason = FinishReasonLength
	case "content_filtered", "content_filter", "guardrail_intervened", "error_toxic":
		reason = FinishReasonContentFilter
	default:
		reason = raw
	}
	return FinishReason{Reason: reason, Raw: raw}
}

// Usage contains token counts from the response, when the provider reports them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add sums two Usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Request is what a single invocation carries through the middleware chain.
// Exactly one of Prompt and Messages is used, depending on the API.
type Request struct {
	Model    Model
	Provider Provider
	API      API
	Prompt   string
	Messages []Message
}

// API names the Bedrock operation used for a Request.
type API string

const (
	APIInvokeModel API = "invoke_model"
	APIConverse    API = "converse"
)

// Response is the uniform result of one invocation.
type Response struct {
	Model        Model
	Provider     Provider
	Text         string
	FinishReason FinishReason
	Usage        Usage
	Raw          []byte // raw provider response JSON, InvokeModel only
}
