package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	reach "github.com/anatolykoptev/go-reach"
	"github.com/anatolykoptev/go-reach/api"
	"github.com/anatolykoptev/go-reach/graphstore"
	"github.com/anatolykoptev/go-reach/kv"
	"github.com/anatolykoptev/go-reach/twitter"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the job workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := reach.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := kv.DefaultConfig(cfg.StorePath)
	storeCfg.Logger = logger.With(slog.String("component", "badger"))
	store, err := kv.Open(storeCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pacer := reach.JitterPacer{Min: cfg.PaceMin, Max: cfg.PaceMax}
	client, err := twitter.Connect(ctx, providerConfig(cfg, pacer))
	if client == nil {
		return err
	}
	if err != nil {
		slog.Warn("provider login failed, jobs will fail until a session is available (run reachd login)",
			slog.String("user", client.Username()), slog.Any("error", err))
	}

	opts := []reach.EngineOption{reach.WithFollowerLimit(cfg.FollowerLimit)}
	if cfg.Neo4j.URI != "" {
		exec, err := connectGraph(ctx, cfg.Neo4j)
		if err != nil {
			return err
		}
		defer exec.Close(context.WithoutCancel(ctx))
		opts = append(opts, reach.WithEdgeRecorder(graphstore.NewRecorder(exec)))
	}

	engine := reach.NewEngine(reach.NewPacedProvider(client, pacer), reach.NewProfileCache(store, cfg.CacheTTL), opts...)
	jobs := reach.NewJobStore(store)
	dispatcher := reach.NewDispatcher(reach.NewWorker(jobs, engine), cfg.Workers, cfg.QueueSize)
	svc := reach.NewService(jobs, dispatcher, cfg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewHandlers(svc)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("reachd stopped")
	return err
}

func providerConfig(cfg reach.Config, pacer reach.Pacer) twitter.ClientConfig {
	return twitter.ClientConfig{
		Username:   cfg.Provider.Username,
		Password:   cfg.Provider.Password,
		TOTPSecret: cfg.Provider.TOTPSecret,
		AuthToken:  cfg.Provider.AuthToken,
		CT0:        cfg.Provider.CT0,
		Proxy:      cfg.Provider.Proxy,
		SessionDir: cfg.Provider.SessionDir,
		SessionTTL: cfg.Provider.SessionTTL,
		PagePacer:  pacer,
	}
}

// connectGraph opens the Neo4j executor used for edge export.
func connectGraph(ctx context.Context, cfg reach.Neo4jConfig) (*graphstore.Executor, error) {
	exec, err := graphstore.NewExecutor(cfg.URI, cfg.Username, cfg.Password, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := exec.Verify(ctx); err != nil {
		_ = exec.Close(ctx)
		return nil, fmt.Errorf("neo4j %s: %w", cfg.URI, err)
	}
	if err := graphstore.NewRecorder(exec).EnsureSchema(ctx); err != nil {
		slog.Warn("neo4j schema setup failed", slog.Any("error", err))
	}
	slog.Info("exporting follow edges to neo4j", slog.String("uri", cfg.URI), slog.String("database", cfg.Database))
	return exec, nil
}
