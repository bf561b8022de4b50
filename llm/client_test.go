package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrock is a test double for BedrockAPI. invoke is called once per
// InvokeModel with the zero-based call index.
type mockBedrock struct {
	mu       sync.Mutex
	invokes  []*bedrockruntime.InvokeModelInput
	converse []*bedrockruntime.ConverseInput

	invoke     func(i int, in *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error)
	converseFn func(in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error)
}

func (m *mockBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.mu.Lock()
	i := len(m.invokes)
	m.invokes = append(m.invokes, in)
	m.mu.Unlock()
	return m.invoke(i, in)
}

func (m *mockBedrock) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.mu.Lock()
	m.converse = append(m.converse, in)
	m.mu.Unlock()
	return m.converseFn(in)
}

func (m *mockBedrock) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invokes) + len(m.converse)
}

// echoMeta answers every InvokeModel with a Meta body echoing the prompt.
func echoMeta() *mockBedrock {
	return &mockBedrock{
		invoke: func(_ int, in *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			var req metaRequest
			if err := json.Unmarshal(in.Body, &req); err != nil {
				return nil, err
			}
			body := fmt.Sprintf(`{"generation":%q,"stop_reason":"stop"}`, "echo: "+req.Prompt)
			return &bedrockruntime.InvokeModelOutput{Body: []byte(body)}, nil
		},
	}
}

func newTestBedrock(t *testing.T, cfg Config, api BedrockAPI, opts ...ClientOption) *Bedrock {
	t.Helper()
	b, err := NewBedrock(cfg, append([]ClientOption{WithBedrockAPI(api)}, opts...)...)
	require.NoError(t, err)
	return b
}

func TestNewBedrock_InvalidModelNoCalls(t *testing.T) {
	var factoryCalls int
	factory := func(context.Context, string) (BedrockAPI, error) {
		factoryCalls++
		return echoMeta(), nil
	}

	_, err := NewBedrock(NewConfig().WithModel("mistral.mistral-7b-instruct-v0:2"), WithClientFactory(factory))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidConfig))
	assert.Zero(t, factoryCalls)

	_, err = NewBedrock(NewConfig().WithMaxTokens(0), WithClientFactory(factory))
	assert.True(t, IsKind(err, ErrInvalidConfig))
	assert.Zero(t, factoryCalls)
}

func TestNewBedrock_OutOfRangeSamplingNoCalls(t *testing.T) {
	for name, cfg := range map[string]Config{
		"NaN temperature":       NewConfig().WithTemperature(math.NaN()),
		"NaN top_p":             NewConfig().WithTopP(math.NaN()),
		"max tokens over int32": NewConfig().WithMaxTokens(math.MaxInt32 + 1),
	} {
		api := &mockBedrock{}
		_, err := NewBedrock(cfg, WithBedrockAPI(api))
		require.Error(t, err, name)
		assert.True(t, IsKind(err, ErrInvalidConfig), name)
		assert.Zero(t, api.calls(), name)
	}
}

func TestBedrockInvoke_InvokeModel(t *testing.T) {
	api := echoMeta()
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat13B), api)

	text, err := b.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", text)

	require.Len(t, api.invokes, 1)
	in := api.invokes[0]
	assert.Equal(t, string(MetaLlama2Chat13B), *in.ModelId)
	assert.Equal(t, "application/json", *in.ContentType)
	assert.Equal(t, "application/json", *in.Accept)
	assert.JSONEq(t, `{"prompt":"hello","max_gen_len":512,"temperature":0.7,"top_p":0.9}`, string(in.Body))
}

func TestBedrockInvoke_Converse(t *testing.T) {
	api := &mockBedrock{
		converseFn: func(*bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
			return simpleConverseOutput("Hi there"), nil
		},
	}
	b := newTestBedrock(t, NewConfig().WithModel(AnthropicClaude3Haiku), api)
	assert.Equal(t, APIConverse, b.API())

	text, err := b.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	require.Len(t, api.converse, 1)
	assert.Empty(t, api.invokes)
	require.Len(t, api.converse[0].Messages, 1)
	block := api.converse[0].Messages[0].Content[0].(*types.ContentBlockMemberText)
	assert.Equal(t, "hello", block.Value)
}

func TestBedrockInvoke_EmptyPrompt(t *testing.T) {
	api := echoMeta()
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat13B), api)

	for _, p := range []string{"", "   ", "\n\t"} {
		_, err := b.Invoke(context.Background(), p)
		assert.True(t, IsKind(err, ErrInvalidInput), "prompt %q", p)
	}
	assert.Zero(t, api.calls())
}

func TestBedrockInvoke_TransportError(t *testing.T) {
	api := &mockBedrock{
		invoke: func(int, *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return nil, &types.ThrottlingException{Message: strPtr("slow down")}
		},
	}
	b := newTestBedrock(t, NewConfig().WithModel(CohereCommand), api)

	text, err := b.Invoke(context.Background(), "hello")
	assert.Empty(t, text)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrTransport, e.Kind)
	assert.Equal(t, CodeRateLimit, e.Code)
	assert.Equal(t, "cohere", e.Provider)
	assert.Equal(t, 1, api.calls(), "no retry")
}

func TestBedrockInvoke_ParseError(t *testing.T) {
	api := &mockBedrock{
		invoke: func(int, *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"unexpected":true}`)}, nil
		},
	}
	b := newTestBedrock(t, NewConfig().WithModel(AmazonTitanTextExpress), api)

	_, err := b.Invoke(context.Background(), "hello")
	assert.True(t, IsKind(err, ErrParse))
	assert.False(t, IsKind(err, ErrTransport))
}

func TestBedrockGenerate_Order(t *testing.T) {
	api := echoMeta()
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat70B), api)

	out, err := b.Generate(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo: one", "echo: two", "echo: three"}, out)
	assert.Equal(t, 3, api.calls())
}

func TestBedrockGenerate_AbortsOnFailure(t *testing.T) {
	api := echoMeta()
	echo := api.invoke
	api.invoke = func(i int, in *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		if i == 1 {
			return nil, errors.New("connection reset")
		}
		return echo(i, in)
	}
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat70B), api)

	out, err := b.Generate(context.Background(), []string{"one", "two", "three"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, IsKind(err, ErrTransport))
	assert.Equal(t, 2, api.calls(), "third prompt is never sent")
}

func TestBedrockGenerate_ValidatesBeforeSending(t *testing.T) {
	api := echoMeta()
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat70B), api)

	out, err := b.Generate(context.Background(), []string{"one", " ", "three"})
	assert.Nil(t, out)
	assert.True(t, IsKind(err, ErrInvalidInput))
	assert.Zero(t, api.calls())
}

func TestBedrockGenerate_Empty(t *testing.T) {
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat70B), echoMeta())
	out, err := b.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBedrockChat_Flattened(t *testing.T) {
	api := &mockBedrock{
		invoke: func(int, *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"completion":" Sure.","stop_reason":"max_tokens"}`)}, nil
		},
	}
	b := newTestBedrock(t, NewConfig().WithModel(AnthropicClaudeV2), api)

	resp, err := b.Chat(context.Background(), []Message{UserMessage("Hi"), AssistantMessage("Hello"), UserMessage("Help?")})
	require.NoError(t, err)
	assert.Equal(t, " Sure.", resp.Text)
	assert.Equal(t, FinishReasonLength, resp.FinishReason.Reason)
	assert.Equal(t, AnthropicClaudeV2, resp.Model)

	var body anthropicRequest
	require.NoError(t, json.Unmarshal(api.invokes[0].Body, &body))
	assert.Equal(t, "\n\nHuman: Hi\n\nAssistant: Hello\n\nHuman: Help?\n\nAssistant:", body.Prompt)
}

func TestBedrockChat_NoMessages(t *testing.T) {
	api := echoMeta()
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat70B), api)
	_, err := b.Chat(context.Background(), nil)
	assert.True(t, IsKind(err, ErrInvalidInput))
	assert.Zero(t, api.calls())
}

func TestBedrockChat_SystemOnly(t *testing.T) {
	for _, model := range []Model{AnthropicClaudeV2, MetaLlama2Chat13B, AnthropicClaude3Haiku} {
		api := &mockBedrock{}
		b := newTestBedrock(t, NewConfig().WithModel(model), api)
		_, err := b.Chat(context.Background(), []Message{SystemMessage("sys")})
		require.Error(t, err, model)
		assert.True(t, IsKind(err, ErrInvalidInput), model)
		assert.Zero(t, api.calls(), model)
	}
}

func TestBedrock_LazyClientOnce(t *testing.T) {
	var created atomic.Int32
	var regions sync.Map
	factory := func(_ context.Context, region string) (BedrockAPI, error) {
		created.Add(1)
		regions.Store(region, true)
		return echoMeta(), nil
	}

	b, err := NewBedrock(NewConfig().WithModel(MetaLlama2Chat13B).WithRegion("eu-central-1"), WithClientFactory(factory))
	require.NoError(t, err)
	assert.Zero(t, created.Load(), "no client before first call")

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Invoke(context.Background(), fmt.Sprintf("p%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	_, ok := regions.Load("eu-central-1")
	assert.True(t, ok)
}

func TestBedrock_LazyClientInitError(t *testing.T) {
	var created int
	factory := func(context.Context, string) (BedrockAPI, error) {
		created++
		return nil, errors.New("no credentials")
	}
	b, err := NewBedrock(NewConfig().WithModel(MetaLlama2Chat13B), WithClientFactory(factory))
	require.NoError(t, err)

	for range 2 {
		_, err = b.Invoke(context.Background(), "hi")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, ErrTransport, e.Kind)
		assert.Equal(t, CodeClientInit, e.Code)
	}
	assert.Equal(t, 1, created)
}

func TestBedrock_MiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(ctx context.Context, req *Request, next InvokeFunc) (*Response, error) {
			order = append(order, name+">")
			resp, err := next(ctx, req)
			order = append(order, "<"+name)
			return resp, err
		}
	}
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat13B), echoMeta(), WithMiddleware(mw("a"), mw("b")))

	_, err := b.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"a>", "b>", "<b", "<a"}, order)
}

func TestBedrock_MiddlewareSeesRequest(t *testing.T) {
	var seen []*Request
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat13B), echoMeta(), WithMiddleware(
		func(ctx context.Context, req *Request, next InvokeFunc) (*Response, error) {
			seen = append(seen, req)
			return next(ctx, req)
		},
	))

	_, err := b.Generate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "b", seen[1].Prompt)
	assert.Equal(t, ProviderMeta, seen[1].Provider)
	assert.Equal(t, APIInvokeModel, seen[1].API)
}

func TestBedrock_ConfigIsCopy(t *testing.T) {
	b := newTestBedrock(t, NewConfig().WithModel(MetaLlama2Chat13B).WithStopSequence("x"), echoMeta())
	cfg := b.Config()
	cfg.StopSequences[0] = "tampered"
	assert.Equal(t, []string{"x"}, b.Config().StopSequences)
	assert.Equal(t, ProviderMeta, b.Provider())
}
