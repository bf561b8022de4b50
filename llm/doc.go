// Package llm wraps AWS Bedrock model invocation for the foundation-model
// families hosted there (Anthropic, AI21, Amazon Titan, Cohere, Meta, OpenAI)
// behind a single prompt-in, text-out client.
//
// Each family has its own request and response body; the Adapter for the
// model's family builds the InvokeModel payload and extracts the generated
// text. Chat-era Anthropic models are routed through the Converse API instead.
package llm
