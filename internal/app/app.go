// Package app wires configuration, storage, the LLM clients, and the
// routing pipeline into a runnable application.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/a-marczewski/mindyard/internal/config"
	"github.com/a-marczewski/mindyard/internal/engine"
	"github.com/a-marczewski/mindyard/internal/graph"
	"github.com/a-marczewski/mindyard/internal/intent"
	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/logging"
	"github.com/a-marczewski/mindyard/internal/queue"
	"github.com/a-marczewski/mindyard/internal/semantic"
	"github.com/a-marczewski/mindyard/internal/storage"
	"github.com/a-marczewski/mindyard/internal/structural"
	"go.uber.org/zap"
)

// taskQueue is the scheduler plus worker side of one queue backend.
type taskQueue interface {
	queue.Scheduler
	queue.Dequeuer
}

// App holds the wired components of one mindyard process.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *storage.DB

	Threads    *storage.ThreadStore
	Hypotheses *storage.HypothesisStore

	Queue  taskQueue
	Engine *engine.Engine
	Worker *queue.Worker

	redisQueue *queue.RedisQueue
}

// New loads configuration and builds the full pipeline.
func New() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize database", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	threads := storage.NewThreadStore(db)
	hypotheses := storage.NewHypothesisStore(db)

	fastModel := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	deepModel := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMDeepModel)
	embedder := semantic.NewEmbeddingClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Threads:    threads,
		Hypotheses: hypotheses,
	}

	if cfg.RedisAddr != "" {
		a.redisQueue = queue.NewRedisQueue(cfg.RedisAddr, cfg.QueueName)
		a.Queue = a.redisQueue
		logger.Info("using redis task queue",
			zap.String("addr", cfg.RedisAddr),
			zap.String("queue", cfg.QueueName))
	} else {
		a.Queue = queue.NewMemoryQueue(0)
		logger.Info("no redis configured, using in-memory task queue")
	}

	a.Engine = engine.New(engine.Options{
		Router:          semantic.NewRouter(embedder, cfg.AnchorSimilarity, cfg.ShortInputMax, logger),
		Classifier:      intent.NewClassifier(fastModel, logger),
		Structural:      structural.NewEngine(deepModel, cfg.EmpathyThreshold, cfg.StructuralWindow, logger),
		Graph:           graph.New(graph.Deps{Gen: fastModel, Scheduler: a.Queue, Logger: logger}),
		Threads:         threads,
		Hypotheses:      hypotheses,
		Scheduler:       a.Queue,
		ProbeConfidence: cfg.ProbeConfidence,
		HistoryLimit:    cfg.HistoryLimit,
		Logger:          logger,
	})

	a.Worker = queue.NewWorker(a.Queue, logger)
	a.Worker.Handle(queue.TypeStructuralUpdate, a.Engine.StructuralTaskHandler())
	a.Worker.Handle(queue.TypeDeepResearch, engine.ResearchTaskHandler(deepModel, threads, logger))

	return a, nil
}

// Close releases the application's resources.
func (a *App) Close() {
	if a.redisQueue != nil {
		if err := a.redisQueue.Close(); err != nil {
			a.Logger.Warn("failed to close redis queue", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
	if a.Logger != nil {
		if err := a.Logger.Sync(); err != nil {
			if !strings.Contains(err.Error(), "sync /dev/stderr: invalid argument") &&
				!strings.Contains(err.Error(), "sync /dev/stderr: inappropriate ioctl for device") {
				fmt.Fprintf(os.Stderr, "Error syncing logger: %v\n", err)
			}
		}
	}
}

// ContextWithLogger returns a context carrying the application's logger.
func (a *App) ContextWithLogger(ctx context.Context) context.Context {
	return logging.ContextWithLogger(ctx, a.Logger)
}
