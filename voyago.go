// Package voyago assembles the conversational trip planner: the listing
// store, the oracle pool over one or more LLM providers, the dialogue
// orchestrator, and session persistence.
package voyago

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/dialog"
	"github.com/voyago-dev/voyago/internal/history"
	"github.com/voyago-dev/voyago/internal/llm/provider"
	"github.com/voyago-dev/voyago/internal/server"
	"github.com/voyago-dev/voyago/pkg/config"
	pobs "github.com/voyago-dev/voyago/pkg/observability"
	"github.com/voyago-dev/voyago/pkg/session"

	"github.com/voyago-dev/voyago/internal/oracle"
)

// App is the assembled planner.
type App struct {
	Config       *config.Config
	Store        *dataset.Store
	Pool         *oracle.Pool
	Oracles      oracle.Suite
	Orchestrator *dialog.Orchestrator
	Sessions     *session.Manager
	Searches     *history.Recorder

	redis *redis.Client
}

// New wires an App from configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := dataset.Open(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: store}

	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.Searches = history.NewRecorder(app.redis)
	}

	workers, err := buildWorkers(cfg)
	if err != nil {
		return nil, err
	}

	var usage oracle.UsageStore
	if app.redis != nil {
		usage = oracle.NewRedisUsageStore(app.redis, "")
	} else {
		usage = oracle.NewMemoryUsageStore()
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Dialog.RequestsPerMin/60.0), 1)
	pool, err := oracle.NewPool(ctx, workers, usage, cfg.Dialog.WorkerCapacity, limiter)
	if err != nil {
		return nil, err
	}
	app.Pool = pool

	categories, err := store.UniqueCategoryValues(ctx)
	if err != nil {
		// An empty dataset still serves conversation; the prompts just
		// carry no observed category values.
		log.Printf("[voyago] loading category values failed: %v", err)
	}
	llm := oracle.NewLLM(pool, cfg.Model, dataset.SchemaDescription(), categories.Describe())
	app.Oracles = oracle.NewSuite(llm)

	opts := []dialog.Option{
		dialog.WithDisplayThreshold(cfg.Dialog.DisplayThreshold),
		dialog.WithTopResults(cfg.Dialog.TopResults),
	}
	if app.Searches != nil {
		opts = append(opts, dialog.WithSearchLog(app.Searches))
	}
	app.Orchestrator = dialog.NewOrchestrator(app.Oracles, store, opts...)

	backend, err := buildSessionBackend(cfg, app.redis)
	if err != nil {
		return nil, err
	}
	app.Sessions = session.NewManager(backend)

	registerHealthChecks(app)
	return app, nil
}

// Server builds the HTTP API over the assembled app.
func (a *App) Server() *server.Server {
	return server.New(a.Orchestrator, a.Sessions, a.Searches)
}

// Close releases held resources.
func (a *App) Close() error {
	var firstErr error
	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil {
			firstErr = err
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildWorkers(cfg *config.Config) ([]provider.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		workers := make([]provider.Provider, 0, len(cfg.GeminiKeys))
		for i, key := range cfg.GeminiKeys {
			p, err := provider.Create("gemini", map[string]any{
				"api_key": key,
				"name":    fmt.Sprintf("gemini-%d", i+1),
			})
			if err != nil {
				return nil, fmt.Errorf("create gemini worker %d: %w", i+1, err)
			}
			workers = append(workers, p)
		}
		return workers, nil

	case "openai":
		p, err := provider.Create("openai", map[string]any{
			"api_key": cfg.OpenAIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai worker: %w", err)
		}
		return []provider.Provider{p}, nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func buildSessionBackend(cfg *config.Config, client *redis.Client) (session.StorageBackend, error) {
	switch cfg.SessionBackend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis session backend requires redis_addr")
		}
		return session.NewRedisBackendFromClient(client, "", 0), nil
	default:
		return session.NewFileBackend(cfg.SessionDir)
	}
}

func registerHealthChecks(app *App) {
	pobs.InitMetrics()
	checker := pobs.InitHealthChecker()
	checker.RegisterCheck(pobs.StoreCheck(app.Store.Ping))
	if app.redis != nil {
		client := app.redis
		checker.RegisterCheck(pobs.RedisCheck(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
}
