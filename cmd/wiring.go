package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"moments-agent/internal/config"
	"moments-agent/internal/events"
	"moments-agent/internal/history"
	"moments-agent/internal/integrations/openai"
	"moments-agent/internal/integrations/paramstore"
	"moments-agent/internal/maintenance"
	"moments-agent/internal/reply"
	"moments-agent/internal/repository"
	"moments-agent/internal/usecase"
)

const openAITokenParam = "/open-ai-token"

// app is everything a transport needs, plus what has to be shut down.
type app struct {
	svc     *usecase.ReplyService
	status  history.Status
	sweeper *maintenance.Sweeper
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// awsLoader defers AWS configuration until a component needs it.
type awsLoader struct {
	ctx    context.Context
	loaded bool
	ssm    *awsssm.Client
	dynamo *awsdynamodb.Client
	err    error
}

func (l *awsLoader) load() error {
	if l.loaded {
		return l.err
	}
	l.loaded = true
	cfg, err := awsconfig.LoadDefaultConfig(l.ctx)
	if err != nil {
		l.err = fmt.Errorf("load AWS config: %w", err)
		return l.err
	}
	l.ssm = awsssm.NewFromConfig(cfg)
	l.dynamo = awsdynamodb.NewFromConfig(cfg)
	return nil
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	aws := &awsLoader{ctx: ctx}

	durable, buildErr := buildDurable(cfg, aws)
	if closer, ok := durable.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = closer.Close() })
	}
	backend, status := history.SelectBackend(ctx, cfg.HistoryBackend, durable, buildErr, logger)
	a.status = status

	llm, err := buildLLM(cfg, aws, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var summarizer history.Summarizer = reply.TemplateSummarizer{}
	if llm != nil {
		summarizer = llm
	}
	generator, err := chooseGenerator(cfg.ReplyGenerator, llm, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := history.NewStore(backend, summarizer, history.Options{
		TTL:            cfg.HistoryTTL,
		SummaryTimeout: cfg.SummaryTimeout,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create history store: %w", err)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		nc, err := events.NewNATS(cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("nats unavailable, events disabled", "err", err)
		} else {
			publisher = nc
			a.closers = append(a.closers, nc.Close)
		}
	}

	a.svc, err = usecase.NewReplyService(store, generator, publisher, status, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create reply service: %w", err)
	}

	if sq, ok := backend.(*repository.SQLite); ok {
		a.sweeper, err = maintenance.NewSweeper(sq, maintenance.DefaultSchedule, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// buildDurable constructs the configured durable backend without probing it;
// SelectBackend decides whether it is usable.
func buildDurable(cfg config.Config, aws *awsLoader) (history.Backend, error) {
	switch cfg.HistoryBackend {
	case "", history.BackendMemory:
		return nil, nil
	case history.BackendDynamoDB:
		if cfg.StateTable == "" {
			return nil, errors.New("STATE_TABLE is required for the dynamodb backend")
		}
		if err := aws.load(); err != nil {
			return nil, err
		}
		c, err := repository.New(aws.dynamo, cfg.StateTable)
		if err != nil {
			return nil, err
		}
		return c, nil
	case history.BackendSQLite:
		s, err := repository.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

// buildLLM returns nil when no API key is configured.
func buildLLM(cfg config.Config, aws *awsLoader, logger *slog.Logger) (*openai.Client, error) {
	var keys openai.KeySource
	switch {
	case cfg.OpenAIAPIKey != "":
		keys = openai.StaticKey(cfg.OpenAIAPIKey)
	case cfg.ParamPrefix != "":
		if err := aws.load(); err != nil {
			return nil, err
		}
		ps, err := paramstore.New(aws.ssm)
		if err != nil {
			return nil, fmt.Errorf("create SSM client: %w", err)
		}
		keys = openai.ParamStoreKey(ps, cfg.ParamPrefix+openAITokenParam)
	default:
		logger.Info("no OpenAI key configured, using template summaries")
		return nil, nil
	}

	c, err := openai.NewClient(keys, openai.WithBaseURL(cfg.OpenAIBaseURL), openai.WithModel(cfg.OpenAIModel))
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	return c, nil
}

func chooseGenerator(kind string, llm *openai.Client, logger *slog.Logger) (reply.Generator, error) {
	switch strings.ToLower(kind) {
	case "", "template":
		return reply.TemplateGenerator{}, nil
	case "llm":
		if llm == nil {
			logger.Warn("REPLY_GENERATOR=llm but no OpenAI key configured, using templates")
			return reply.TemplateGenerator{}, nil
		}
		return reply.NewLLMGenerator(llm)
	default:
		return nil, fmt.Errorf("unknown reply generator %q", kind)
	}
}
