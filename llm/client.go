package llm

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// InvokeFunc is the signature for the core invocation and middleware next functions.
type InvokeFunc func(ctx context.Context, req *Request) (*Response, error)

// Middleware wraps a single invocation. Batch calls pass through it once per prompt.
type Middleware func(ctx context.Context, req *Request, next InvokeFunc) (*Response, error)

// ClientFactory creates the Bedrock client for a region.
type ClientFactory func(ctx context.Context, region string) (BedrockAPI, error)

// Bedrock invokes one configured model. It is safe for concurrent use; the
// underlying Bedrock client is created on first use and reused afterwards.
type Bedrock struct {
	cfg        Config
	provider   Provider
	adapter    Adapter
	middleware []Middleware
	log        zerolog.Logger

	newAPI  ClientFactory
	apiOnce sync.Once
	api     BedrockAPI
	apiErr  error
}

type clientConfig struct {
	api        BedrockAPI
	factory    ClientFactory
	middleware []Middleware
	log        zerolog.Logger
}

// ClientOption configures a Bedrock client.
type ClientOption func(*clientConfig)

// WithBedrockAPI uses api instead of lazily loading one from the AWS default config.
func WithBedrockAPI(api BedrockAPI) ClientOption {
	return func(c *clientConfig) {
		c.api = api
	}
}

// WithClientFactory replaces how the lazy client is built.
func WithClientFactory(f ClientFactory) ClientOption {
	return func(c *clientConfig) {
		c.factory = f
	}
}

// WithMiddleware adds middleware to the client.
func WithMiddleware(m ...Middleware) ClientOption {
	return func(c *clientConfig) {
		c.middleware = append(c.middleware, m...)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.log = log
	}
}

// NewBedrock validates cfg and returns a client for it. No AWS call is made
// until the first invocation.
func NewBedrock(cfg Config, opts ...ClientOption) (*Bedrock, error) {
	cc := &clientConfig{log: zerolog.Nop(), factory: loadBedrockClient}
	for _, o := range opts {
		o(cc)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := cfg.ResolveProvider()
	if err != nil {
		return nil, err
	}
	adapter, err := AdapterFor(p)
	if err != nil {
		return nil, err
	}

	b := &Bedrock{
		cfg:        cfg.clone(),
		provider:   p,
		adapter:    adapter,
		middleware: cc.middleware,
		log:        cc.log.With().Str("component", "bedrock").Str("model", string(cfg.Model)).Logger(),
		newAPI:     cc.factory,
		api:        cc.api,
	}
	return b, nil
}

// Config returns a copy of the client's configuration.
func (b *Bedrock) Config() Config { return b.cfg.clone() }

// Provider returns the resolved provider family.
func (b *Bedrock) Provider() Provider { return b.provider }

// API returns the Bedrock operation this client uses for single prompts.
func (b *Bedrock) API() API {
	if usesConverse(b.cfg.Model, b.provider) {
		return APIConverse
	}
	return APIInvokeModel
}

func loadBedrockClient(ctx context.Context, region string) (BedrockAPI, error) {
	conf, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(conf), nil
}

// client returns the cached Bedrock client, building it at most once.
func (b *Bedrock) client(ctx context.Context) (BedrockAPI, error) {
	b.apiOnce.Do(func() {
		if b.api != nil {
			return
		}
		b.log.Debug().Str("region", b.cfg.Region).Msg("Initializing Bedrock client")
		api, err := b.newAPI(context.WithoutCancel(ctx), b.cfg.Region)
		if err != nil {
			b.apiErr = &Error{Kind: ErrTransport, Code: CodeClientInit, Provider: b.provider.String(), Message: "failed to load AWS configuration", Cause: err}
			return
		}
		b.api = api
	})
	return b.api, b.apiErr
}

// Invoke sends a single prompt and returns the generated text.
func (b *Bedrock) Invoke(ctx context.Context, prompt string) (string, error) {
	req, err := b.promptRequest(prompt)
	if err != nil {
		return "", err
	}
	resp, err := b.do(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Generate invokes each prompt in order and returns the texts in the same
// order. The first failure aborts the batch and no partial result is returned.
func (b *Bedrock) Generate(ctx context.Context, prompts []string) ([]string, error) {
	reqs := make([]*Request, 0, len(prompts))
	for _, p := range prompts {
		req, err := b.promptRequest(p)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	out := make([]string, 0, len(reqs))
	for i, req := range reqs {
		resp, err := b.do(ctx, req)
		if err != nil {
			b.log.Warn().Err(err).Int("index", i).Int("batch_size", len(reqs)).Msg("Batch generation aborted")
			return nil, err
		}
		out = append(out, resp.Text)
	}
	return out, nil
}

// Chat sends a message history. Converse models receive the messages as-is;
// other models receive them flattened into a single prompt.
func (b *Bedrock) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if len(messages) == 0 {
		return nil, &Error{Kind: ErrInvalidInput, Provider: b.provider.String(), Message: "no messages"}
	}
	if !slices.ContainsFunc(messages, func(m Message) bool {
		return m.Role == RoleUser || m.Role == RoleAssistant
	}) {
		return nil, &Error{Kind: ErrInvalidInput, Provider: b.provider.String(), Message: "conversation has no user or assistant messages"}
	}
	req := &Request{Model: b.cfg.Model, Provider: b.provider, API: b.API()}
	switch {
	case req.API == APIConverse:
		req.Messages = append([]Message(nil), messages...)
	case b.provider == ProviderAnthropic:
		req.Prompt = anthropicTranscript(messages)
	default:
		req.Prompt = promptTranscript(messages)
	}
	return b.do(ctx, req)
}

func (b *Bedrock) promptRequest(prompt string) (*Request, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &Error{Kind: ErrInvalidInput, Provider: b.provider.String(), Message: "prompt is empty"}
	}
	req := &Request{Model: b.cfg.Model, Provider: b.provider, API: b.API()}
	if req.API == APIConverse {
		req.Messages = []Message{UserMessage(prompt)}
	} else {
		req.Prompt = prompt
	}
	return req, nil
}

func (b *Bedrock) do(ctx context.Context, req *Request) (*Response, error) {
	// Wrap with middleware (first registered = outermost)
	fn := b.core
	for i := len(b.middleware) - 1; i >= 0; i-- {
		mw := b.middleware[i]
		next := fn
		fn = func(ctx context.Context, req *Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}
	return fn(ctx, req)
}

func (b *Bedrock) core(ctx context.Context, req *Request) (*Response, error) {
	var (
		resp *Response
		err  error
	)
	switch req.API {
	case APIConverse:
		resp, err = b.converse(ctx, req)
	default:
		resp, err = b.invokeModel(ctx, req)
	}
	if err != nil {
		b.log.Warn().Err(err).Str("api", string(req.API)).Msg("Bedrock invocation failed")
		return nil, err
	}
	resp.Model = req.Model
	b.log.Debug().
		Str("api", string(req.API)).
		Str("finish_reason", resp.FinishReason.Reason).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("Bedrock invocation complete")
	return resp, nil
}

func (b *Bedrock) invokeModel(ctx context.Context, req *Request) (*Response, error) {
	input, err := b.adapter.BuildInvokeInput(b.cfg, req.Prompt)
	if err != nil {
		return nil, err
	}
	api, err := b.client(ctx)
	if err != nil {
		return nil, err
	}
	output, err := api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(input.ModelID),
		Body:        input.Body,
		ContentType: aws.String(input.ContentType),
		Accept:      aws.String(input.Accept),
	})
	if err != nil {
		return nil, classifyBedrockError(b.provider.String(), err)
	}
	if output == nil {
		return nil, &Error{Kind: ErrParse, Provider: b.provider.String(), Message: "empty invoke output"}
	}
	return b.adapter.ParseResponse(output.Body)
}

func (b *Bedrock) converse(ctx context.Context, req *Request) (*Response, error) {
	input, err := toConverseInput(b.cfg, req.Messages)
	if err != nil {
		return nil, err
	}
	api, err := b.client(ctx)
	if err != nil {
		return nil, err
	}
	output, err := api.Converse(ctx, input)
	if err != nil {
		return nil, classifyBedrockError(b.provider.String(), err)
	}
	return fromConverseOutput(b.provider, output)
}

func classifyBedrockError(provider string, err error) error {
	var code string
	msg := err.Error()

	// Check for specific Bedrock exception types
	var accessDenied *types.AccessDeniedException
	var validation *types.ValidationException
	var notFound *types.ResourceNotFoundException
	var throttling *types.ThrottlingException
	var quota *types.ServiceQuotaExceededException
	var timeout *types.ModelTimeoutException
	var internal *types.InternalServerException
	var modelErr *types.ModelErrorException
	var apiErr smithy.APIError

	lower := strings.ToLower(msg)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		code = CodeCanceled
	case errors.As(err, &accessDenied):
		code = CodeAuthentication
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		code = CodeContextLength
	case errors.As(err, &validation):
		code = CodeInvalidRequest
	case errors.As(err, &notFound):
		code = CodeNotFound
	case errors.As(err, &throttling), errors.As(err, &quota):
		code = CodeRateLimit
	case errors.As(err, &timeout), errors.As(err, &internal), errors.As(err, &modelErr):
		code = CodeServer
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "guardrail"):
		code = CodeContentFilter
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "ExpiredTokenException", "InvalidSignatureException", "AccessDeniedException":
			code = CodeAuthentication
		case "ThrottlingException", "TooManyRequestsException":
			code = CodeRateLimit
		default:
			code = CodeServer
		}
	default:
		code = CodeServer
	}

	return &Error{
		Kind:     ErrTransport,
		Code:     code,
		Provider: provider,
		Message:  msg,
		Cause:    err,
	}
}
