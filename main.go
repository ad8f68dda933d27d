package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prediction-fleet/agents"
	appconfig "prediction-fleet/config"
	"prediction-fleet/observability"
	"prediction-fleet/repository"
	"prediction-fleet/services"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// nowEpochMs returns the current time in epoch milliseconds, the signal
// timestamp convention.
func nowEpochMs() int64 {
	return time.Now().UnixMilli()
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		observability.Info("no .env file found, using environment variables")
	}

	production := os.Getenv("ENV") == "production"
	observability.InitLogger(production)
	observability.SetMetrics(observability.NewMetrics(prometheus.DefaultRegisterer))

	cfg, err := appconfig.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	ctx := context.Background()

	// Database is optional: without it the fleet trades without a ledger.
	var repo *repository.Repository
	if cfg.HasDatabase() {
		repo, err = repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("database unavailable, running without ledger", "error", err)
			repo = nil
		}
	} else {
		observability.Warn("DATABASE_URL not set, running without ledger")
	}

	// Model providers. At least one must be configured.
	var openaiService *services.OpenAIService
	if cfg.HasOpenAI() {
		openaiService, err = services.NewOpenAIService(cfg)
		if err != nil {
			observability.Warn("failed to initialize OpenAI service", "error", err)
		}
	}
	var bedrockService *services.BedrockService
	if cfg.HasBedrock() {
		bedrockService, err = services.NewBedrockService(ctx, cfg)
		if err != nil {
			observability.Warn("failed to initialize Bedrock service", "error", err)
		}
	}
	if openaiService == nil && bedrockService == nil {
		observability.Fatal("no model provider configured, set OPENAI_API_KEY or AWS_REGION")
	}
	modelRouter := services.NewModelRouter(openaiService, bedrockService)

	exchange := services.NewExchangeService(cfg)
	search := services.NewSearchService(cfg)

	var engine agents.DurableEngine
	if cfg.HasEngine() && cfg.Engine.Token != "" {
		engine = services.NewEngineService(cfg)
	} else {
		observability.Warn("durable engine not configured, durable dispatch and health checks disabled")
	}

	fleet, err := appconfig.LoadFleet(cfg.Fleet.Path)
	if err != nil {
		observability.Fatal("failed to load fleet catalog", "error", err, "path", cfg.Fleet.Path)
	}
	observability.Info("fleet loaded", "agents", len(fleet))

	var ledger agents.Ledger
	if repo != nil {
		ledger = repo
	}

	tracker := agents.NewRunTracker(time.Duration(cfg.Tracker.TTLMinutes) * time.Minute)
	runner := agents.NewRunner(modelRouter, exchange, search, ledger, cfg)
	dispatcher := agents.NewDispatcher(fleet, runner, engine, ledger, tracker, cfg)
	var health *agents.HealthChecker
	if engine != nil {
		health = agents.NewHealthChecker(fleet, engine, runner, ledger, cfg)
	}

	app := NewApp(cfg, fleet, repo, dispatcher, health, tracker)
	defer app.Shutdown()

	handler := NewAPIHandler(app, cfg)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		observability.Info("server listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	observability.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("graceful shutdown failed", "error", err)
	}
}
