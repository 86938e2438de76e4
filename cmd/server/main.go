package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyforge/internal/api"
	"storyforge/internal/artifacts"
	"storyforge/internal/config"
	"storyforge/internal/figma"
	"storyforge/internal/generate"
	"storyforge/internal/jira"
	"storyforge/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	jiraClient := jira.NewClient(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraAPIToken)
	defer jiraClient.Close()

	figmaClient := figma.NewClient(cfg.FigmaBaseURL, cfg.FigmaToken)
	defer figmaClient.Close()

	claude := generate.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	defer claude.Close()

	cache, err := artifacts.Open(cfg.ArtifactDBPath)
	if err != nil {
		log.Error("open artifact cache", "path", cfg.ArtifactDBPath, "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	worker := pipeline.NewWorker(jiraClient, figmaClient, claude, cache, log,
		cfg.SectionLabel, cfg.JiraProjectKey, cfg.MaxConcurrentGenerate)
	orch := pipeline.NewOrchestrator(worker, pipeline.NewJobStore(cfg.JobTTL),
		jiraClient, cache, cfg.WorkerCount, cfg.MaxQueueSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch.Start(ctx)

	server := api.NewServer(orch, claude.Stats, cfg.SectionLabel, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(cfg.StoryforgeAPIKey),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", httpServer.Addr, "model", claude.Model())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	orch.Stop()
	log.Info("shutdown complete")
}
