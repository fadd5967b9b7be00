package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krackn88/hybrid-dev-beta/internal/api/rest"
	"github.com/krackn88/hybrid-dev-beta/internal/audit"
	"github.com/krackn88/hybrid-dev-beta/internal/config"
	"github.com/krackn88/hybrid-dev-beta/internal/docs"
	"github.com/krackn88/hybrid-dev-beta/internal/github"
	"github.com/krackn88/hybrid-dev-beta/internal/pipeline"
	"github.com/krackn88/hybrid-dev-beta/internal/provider"
	"github.com/krackn88/hybrid-dev-beta/internal/scaffold"
	"github.com/krackn88/hybrid-dev-beta/internal/scheduler"
	"github.com/krackn88/hybrid-dev-beta/internal/source"
	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	fs := pflag.NewFlagSet("automator", pflag.ContinueOnError)
	mode := fs.String("mode", "webhook", "run mode: webhook, poll, update or complete")
	prompt := fs.String("prompt", "", "prompt text for complete mode")
	debug := fs.Bool("debug", false, "enable development logging")
	config.RegisterFlags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.Load(fs)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mode == "complete" {
		if err := cfg.ValidateProvider(); err != nil {
			logger.Error("invalid configuration", zap.Error(err))
			return 1
		}
		return complete(ctx, cfg, *prompt, logger)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return 1
	}

	logger.Info("starting automator",
		zap.String("mode", *mode),
		zap.String("repo", cfg.Target().FullName()),
		zap.String("branch", cfg.Branch),
		zap.String("local_path", cfg.LocalPath),
	)

	switch *mode {
	case "webhook":
		err = app.serveWebhooks(ctx)
	case "poll":
		err = app.poll(ctx)
	case "update":
		return app.update(ctx)
	default:
		logger.Error("unknown mode", zap.String("mode", *mode))
		return 2
	}

	if err != nil {
		logger.Error("automator stopped with error", zap.Error(err))
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// app holds the components shared by the repository modes
type app struct {
	cfg       *config.Config
	client    *github.Client
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	target := cfg.Target()

	client, err := github.NewClient(cfg.GitHubToken, cfg.APIBaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}

	extensionDir := filepath.Join(cfg.LocalPath, cfg.ExtensionDir)
	renderer, err := scaffold.NewRenderer(extensionDir, scaffold.Manifest{
		Name:      cfg.ExtensionName,
		Publisher: cfg.RepoOwner,
	}, logger)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(target, pipeline.Steps{
		Syncer:    github.NewSyncer(logger),
		Renderer:  renderer,
		Builder:   scaffold.NewBuilder(extensionDir, cfg.BuildArgv(), logger),
		Installer: scaffold.NewDependencyInstaller(cfg.LocalPath, cfg.DependencyArgv(), logger),
		Docs:      docs.NewUpdater(cfg.LocalPath, cfg.TodoFile, cfg.ChangelogFile, logger),
		Committer: github.NewCommitter(cfg.AuthorName, cfg.AuthorEmail, logger),
	}, pipeline.Options{
		StepTimeout:   cfg.StepTimeout,
		SkipBuild:     cfg.SkipBuild,
		CommitMessage: cfg.CommitMessage,
	}, logger)

	opts := scheduler.Options{
		Cooldown:           cfg.Cooldown(),
		AutoCommit:         cfg.AutoCommit,
		AutoCommitInterval: cfg.AutoCommitInterval(),
		StateFile:          cfg.StateFile,
	}
	if cfg.AuditLog != "" {
		auditLog, err := audit.NewLog(cfg.AuditLog, logger)
		if err != nil {
			return nil, err
		}
		opts.Recorder = auditLog
	}

	sched, err := scheduler.New(p, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &app{
		cfg:       cfg,
		client:    client,
		scheduler: sched,
		logger:    logger,
	}, nil
}

// serveWebhooks runs the webhook server and the scheduler until ctx is done
func (a *app) serveWebhooks(ctx context.Context) error {
	switch {
	case a.cfg.WebhookSecret == "" && a.cfg.InsecureWebhooks:
		a.logger.Warn("webhook secret not configured, accepting unsigned deliveries")
	case a.cfg.WebhookSecret == "":
		a.logger.Error("webhook secret not configured, every delivery will be rejected")
	}

	webhooks := source.NewWebhookSource(a.cfg.WebhookSecret, a.cfg.InsecureWebhooks, a.cfg.Branch, a.logger)
	handler := rest.NewHandler(webhooks, a.scheduler, a.logger)

	addr := fmt.Sprintf(":%d", a.cfg.WebhookPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           rest.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting webhook server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	return g.Wait()
}

// poll runs the polling source and the scheduler until ctx is done
func (a *app) poll(ctx context.Context) error {
	poller := source.NewPollingSource(a.client, a.cfg.Target(), a.cfg.PollInterval(), a.scheduler.Watermark, a.logger)
	events := make(chan types.ChangeEvent)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		poller.Start(gctx, events)
		return nil
	})

	g.Go(func() error {
		a.scheduler.Consume(gctx, events)
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	return g.Wait()
}

// update runs the pipeline once and prints the next open todo item
func (a *app) update(ctx context.Context) int {
	run, err := a.scheduler.RunOnce(ctx, types.Trigger{Kind: types.TriggerManual})
	if err != nil {
		a.logger.Error("update failed", zap.Error(err))
		return 1
	}

	a.logger.Info("update finished",
		zap.String("run_id", run.ID),
		zap.String("outcome", string(run.Outcome)),
		zap.String("synced_sha", run.SyncedSHA),
		zap.String("pushed_sha", run.PushedSHA),
	)

	next, err := docs.NextTodo(filepath.Join(a.cfg.LocalPath, a.cfg.TodoFile))
	if err != nil {
		a.logger.Warn("failed to read todo file", zap.Error(err))
	} else {
		fmt.Printf("Next task: %s\n", next)
	}

	if run.Outcome == types.OutcomeFailure {
		return 1
	}
	return 0
}

// complete sends prompt to the configured completion provider
func complete(ctx context.Context, cfg *config.Config, prompt string, logger *zap.Logger) int {
	if prompt == "" {
		logger.Error("complete mode needs --prompt")
		return 2
	}

	p, err := provider.New(cfg.Provider, provider.Options{
		APIKey: cfg.ProviderKey(),
		Model:  cfg.Model,
	}, logger)
	if err != nil {
		logger.Error("failed to create completion provider", zap.Error(err))
		return 1
	}

	text, err := p.Complete(ctx, prompt)
	if err != nil {
		logger.Error("completion failed", zap.String("provider", cfg.Provider), zap.Error(err))
		return 1
	}

	fmt.Println(text)
	return 0
}
