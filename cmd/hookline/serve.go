package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/hooklinehq/hookline/internal/ai"
	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/forward"
	"github.com/hooklinehq/hookline/internal/handlers"
	"github.com/hooklinehq/hookline/internal/line"
	"github.com/hooklinehq/hookline/internal/logger"
	"github.com/hooklinehq/hookline/internal/pipeline"
	"github.com/hooklinehq/hookline/internal/relay"
	"github.com/hooklinehq/hookline/internal/server"
	"github.com/hooklinehq/hookline/internal/storage"
	"github.com/hooklinehq/hookline/internal/storage/providers/s3"
	"github.com/hooklinehq/hookline/internal/version"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStorageProvider,
			provideJanitor,
			provideLineClient,
			provideAIClient,
			provideForwarder,
			providePipeline,
			provideDispatcher,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewMetricsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			startJanitor,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStorageProvider(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (storage.Provider, error) {
	if !cfg.Storage.Enabled() {
		log.Warn("No object storage configured. Media analysis features will be limited.")
		return nil, nil
	}
	provider, err := s3.New(log, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseTLS)
	if err != nil {
		return nil, fmt.Errorf("init storage provider: %w", err)
	}
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error { return provider.EnsureBucket(ctx) }})
	return provider, nil
}

func provideJanitor(log *slog.Logger, cfg config.Config, provider storage.Provider) *storage.Janitor {
	if provider == nil {
		return nil
	}
	return storage.NewJanitor(log, provider, cfg.Storage.SweepInterval(), cfg.Storage.MaxAge())
}

func provideLineClient(log *slog.Logger, cfg config.Config) *line.Client {
	return line.New(log, cfg.Line.ChannelToken, cfg.Line.APIBaseURL, cfg.Line.DataAPIBaseURL, cfg.Line.Timeout())
}

func provideAIClient(log *slog.Logger, cfg config.Config) *ai.Client {
	return ai.New(log, cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Timeout())
}

func provideForwarder(log *slog.Logger, cfg config.Config) *forward.Forwarder {
	return forward.NewForwarder(log, cfg.Forward.Timeout())
}

func providePipeline(log *slog.Logger, cfg config.Config, lineClient *line.Client, aiClient *ai.Client, provider storage.Provider) *pipeline.Pipeline {
	var store pipeline.ObjectStore
	if provider != nil {
		store = provider
	}
	return pipeline.New(log, lineClient, store, aiClient, lineClient, cfg.Storage.URLTTL())
}

func provideDispatcher(log *slog.Logger, cfg config.Config, forwarder *forward.Forwarder, media *pipeline.Pipeline) *relay.Dispatcher {
	primary := forward.Destination{
		Name:             "primary",
		URL:              cfg.Forward.Primary.URL,
		IncludeSignature: cfg.Forward.Primary.IncludeSignature,
	}
	secondary := forward.Destination{
		Name:             "secondary",
		URL:              cfg.Forward.Secondary.URL,
		IncludeSignature: cfg.Forward.Secondary.IncludeSignature,
	}
	return relay.NewDispatcher(log, forwarder, media, primary, secondary)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dispatcher *relay.Dispatcher) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, cfg.Line.ChannelSecret, cfg.MissingSettings(), dispatcher)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startJanitor(lc fx.Lifecycle, janitor *storage.Janitor) {
	if janitor == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return janitor.Start() },
		OnStop:  func(_ context.Context) error { janitor.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	fmt.Printf("Starting hookline %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if missing := cfg.MissingSettings(); len(missing) > 0 {
				logger.Warn("starting with incomplete configuration", slog.Any("missing", missing))
			} else if err := cfg.Validate(); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
