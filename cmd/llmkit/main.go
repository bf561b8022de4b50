// Command llmkit invokes Bedrock models and searches Wikipedia from the
// command line, over HTTP or as an MCP tool server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quells-bot/llmkit/config"
	"github.com/quells-bot/llmkit/llm"
	"github.com/quells-bot/llmkit/mcpserver"
	"github.com/quells-bot/llmkit/server"
	"github.com/quells-bot/llmkit/tool"
	"github.com/quells-bot/llmkit/wikipedia"
	"github.com/rs/zerolog"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("llmkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printHelp(stderr) }

	configPath := fs.String("config", os.Getenv("LLMKIT_CONFIG"), "YAML configuration file")
	model := fs.String("model", "", "Bedrock model identifier (overrides config)")
	region := fs.String("region", "", "AWS region (overrides config)")
	logLevel := fs.String("log-level", "", "log level (overrides config)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		printHelp(stderr)
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version) //nolint:errcheck
		return 0
	case "help":
		printHelp(stdout)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(stderr, err) //nolint:errcheck
			return 1
		}
	}
	if *model != "" {
		cfg.Bedrock.Model = *model
	}
	if *region != "" {
		cfg.Bedrock.Region = *region
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck
		return 1
	}
	log, err := cfg.Log.Logger(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck
		return 1
	}
	a := &app{cfg: cfg, log: log, stdin: stdin, stdout: stdout, stderr: stderr}

	switch cmd {
	case "invoke":
		return a.invoke(ctx, rest)
	case "generate":
		return a.generate(ctx, rest)
	case "wiki":
		return a.wiki(ctx, rest)
	case "serve":
		return a.serve(ctx, rest)
	case "mcp":
		return a.mcp(ctx, rest)
	}
	fmt.Fprintf(stderr, "llmkit: unknown command %q\n", cmd) //nolint:errcheck
	printHelp(stderr)
	return 2
}

func (a *app) fail(err error) int {
	fmt.Fprintln(a.stderr, err) //nolint:errcheck
	return 1
}

func (a *app) bedrock(opts ...llm.ClientOption) (*llm.Bedrock, error) {
	cfg, err := a.cfg.Bedrock.LLMConfig()
	if err != nil {
		return nil, err
	}
	return llm.NewBedrock(cfg, append([]llm.ClientOption{llm.WithLogger(a.log)}, opts...)...)
}

func (a *app) searcher(opts ...wikipedia.Option) (*wikipedia.Query, error) {
	return wikipedia.New(a.cfg.Wikipedia, append([]wikipedia.Option{wikipedia.WithLogger(a.log)}, opts...)...)
}

// invoke sends the arguments, joined by spaces, as one prompt. With no
// arguments the prompt is read from stdin.
func (a *app) invoke(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	prompt := strings.Join(fs.Args(), " ")
	if fs.NArg() == 0 {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return a.fail(fmt.Errorf("llmkit: read stdin: %w", err))
		}
		prompt = string(data)
	}

	b, err := a.bedrock()
	if err != nil {
		return a.fail(err)
	}
	text, err := b.Invoke(ctx, prompt)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.stdout, text) //nolint:errcheck
	return 0
}

// generate treats each argument as a separate prompt.
func (a *app) generate(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asJSON := fs.Bool("json", false, "print the generations as a JSON array")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(a.stderr, "usage: llmkit generate [-json] PROMPT...") //nolint:errcheck
		return 2
	}

	b, err := a.bedrock()
	if err != nil {
		return a.fail(err)
	}
	out, err := b.Generate(ctx, fs.Args())
	if err != nil {
		return a.fail(err)
	}
	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return a.fail(err)
		}
		return 0
	}
	fmt.Fprintln(a.stdout, strings.Join(out, "\n\n")) //nolint:errcheck
	return 0
}

func (a *app) wiki(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("wiki", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	lang := fs.String("lang", a.cfg.Wikipedia.Lang, "Wikipedia language code")
	topK := fs.Int("top-k", a.cfg.Wikipedia.TopKResults, "number of pages")
	maxLen := fs.Int("max-len", a.cfg.Wikipedia.MaxDocContentLength, "summary length cap in characters")
	endpoint := fs.String("endpoint", wikipedia.DefaultEndpoint, "MediaWiki API endpoint template")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a.cfg.Wikipedia = a.cfg.Wikipedia.WithLang(*lang).WithTopKResults(*topK).WithMaxDocContentLength(*maxLen)
	q, err := a.searcher(wikipedia.WithEndpoint(*endpoint))
	if err != nil {
		return a.fail(err)
	}
	result, err := q.Run(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprint(a.stdout, result) //nolint:errcheck
	return 0
}

func (a *app) serve(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	deps := server.Deps{Log: a.log}
	var clientOpts []llm.ClientOption
	if a.cfg.Server.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		clientOpts = append(clientOpts, llm.WithMiddleware(llm.NewMetrics(reg).Middleware()))
		deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	b, err := a.bedrock(clientOpts...)
	if err != nil {
		return a.fail(err)
	}
	q, err := a.searcher()
	if err != nil {
		return a.fail(err)
	}
	deps.LLM, deps.Wiki = b, q
	deps.Tools = tool.NewBox()
	deps.Tools.Register(b.Tool(), q.Tool())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", *addr).Str("model", string(b.Config().Model)).Msg("Listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return a.fail(err)
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return a.fail(err)
	}
	a.log.Info().Msg("Server stopped")
	return 0
}

// mcp serves the tools on stdin/stdout. Logs go to stderr.
func (a *app) mcp(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	b, err := a.bedrock()
	if err != nil {
		return a.fail(err)
	}
	q, err := a.searcher()
	if err != nil {
		return a.fail(err)
	}

	s := mcpserver.New("llmkit", version, a.log)
	s.Register(b.Tool(), q.Tool())
	if err := s.Serve(ctx, a.stdin, a.stdout); err != nil && !errors.Is(err, context.Canceled) {
		return a.fail(err)
	}
	return 0
}

func printHelp(out io.Writer) {
	helpText := `llmkit - Bedrock model invocation and Wikipedia search

Usage:
  llmkit [options] <command> [arguments]

Options:
  -config FILE     YAML configuration (default $LLMKIT_CONFIG)
  -model ID        Bedrock model identifier
  -region REGION   AWS region
  -log-level LVL   debug, info, warn, error

Commands:
  invoke PROMPT...              Send one prompt (stdin when omitted)
  generate [-json] PROMPT...    Send each argument as a prompt, in order
  wiki [-lang] [-top-k] [-max-len] [-endpoint] QUERY
                                Search Wikipedia and print page summaries
  serve [-addr]                 Serve the HTTP API
  mcp                           Serve tools over MCP on stdin/stdout
  version                       Print the version

Examples:
  llmkit -model meta.llama2-13b-chat-v1 invoke "Tell me a joke"
  llmkit wiki -lang es "lenguaje de programación Rust"`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
