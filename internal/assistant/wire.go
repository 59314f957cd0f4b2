package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/bus"
	"github.com/njmorgan/loom/internal/classifier"
	"github.com/njmorgan/loom/internal/config"
	"github.com/njmorgan/loom/internal/engine"
	"github.com/njmorgan/loom/internal/knowledge"
	"github.com/njmorgan/loom/internal/plan"
	"github.com/njmorgan/loom/internal/synth"
	"github.com/njmorgan/loom/internal/tools"
	"github.com/njmorgan/loom/pkg/types"
)

// System is a fully wired assistant plus the pieces callers observe:
// the event bus, the coordinator for stats, and the knowledge store
// for ingestion.
type System struct {
	Assistant   *Assistant
	Bus         *bus.Bus
	Coordinator *engine.Coordinator
	Store       *knowledge.Store
	Executor    *tools.Executor
}

// Build wires a System from configuration.
func Build(cfg *config.Config) (*System, error) {
	profiles, err := plan.LoadProfiles(cfg.Engine.ProfilesPath)
	if err != nil {
		return nil, err
	}

	store, err := knowledge.NewStore(cfg.Knowledge.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	retrievalOpts := []knowledge.ServiceOption{knowledge.WithLexical(store)}
	if cfg.Knowledge.UseEmbeddings {
		if index, err := buildVectorIndex(cfg, store); err != nil {
			log.Warn().Err(err).Msg("semantic index unavailable; lexical retrieval only")
		} else {
			retrievalOpts = append(retrievalOpts, knowledge.WithSemantic(index))
		}
	}
	retriever := knowledge.NewService(retrievalOpts...)
	retriever.MinScore = cfg.Knowledge.MinScore

	executor := tools.NewExecutor()
	register := func(tool tools.Tool) error {
		if err := executor.Register(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Kind(), err)
		}
		return nil
	}

	searchOpts := []tools.WebSearchOption{
		tools.WithAPIKey(cfg.Search.APIKey),
		tools.WithCache(tools.NewCache(cfg.Search.CacheSize, time.Duration(cfg.Search.CacheTTLMinutes)*time.Minute)),
	}
	if cfg.Search.Endpoint != "" {
		searchOpts = append(searchOpts, tools.WithEndpoint(cfg.Search.Endpoint))
	}

	githubOpts := []tools.GitHubOption{}
	if cfg.GitHub.Token != "" {
		githubOpts = append(githubOpts, tools.WithGitHubToken(cfg.GitHub.Token))
	}
	if cfg.GitHub.BaseURL != "" {
		githubOpts = append(githubOpts, tools.WithGitHubURL(cfg.GitHub.BaseURL))
	}

	for _, tool := range []tools.Tool{
		tools.NewWebSearchTool(searchOpts...),
		tools.NewWebScrapeTool(nil),
		tools.NewCodeRepoTool(githubOpts...),
		tools.NewIssueTrackerTool(githubOpts...),
		tools.NewKnowledgeTool(retriever),
	} {
		if err := register(tool); err != nil {
			store.Close()
			return nil, err
		}
	}

	events := bus.New()

	engineOpts := []engine.Option{
		engine.WithReplanner(engine.NewHeuristicReplanner(profiles)),
		engine.WithMaxAdaptations(cfg.Engine.MaxAdaptations),
		engine.WithUpdateFunc(bus.UpdatePublisher(events)),
	}
	if cfg.Engine.CallTimeoutSeconds > 0 {
		engineOpts = append(engineOpts,
			engine.WithCallTimeout(time.Duration(cfg.Engine.CallTimeoutSeconds)*time.Second))
	}
	if cfg.Engine.FailurePolicy == "best_effort" {
		engineOpts = append(engineOpts, engine.WithFailurePolicy(engine.BestEffort))
	}
	if cfg.Engine.RetryAttempts > 0 {
		retry := engine.RetryPolicy{
			Attempts: cfg.Engine.RetryAttempts,
			Backoff:  time.Duration(cfg.Engine.RetryBackoffMs) * time.Millisecond,
		}
		for _, kind := range []types.ToolKind{types.ToolWebSearch, types.ToolWebScrape} {
			engineOpts = append(engineOpts, engine.WithRetryPolicy(kind, retry))
		}
	}
	coordinator := engine.NewCoordinator(executor, engineOpts...)

	var provider synth.Provider
	if cfg.LLM.Provider == "ollama" {
		provider = synth.NewOllamaProvider(synth.OllamaConfig{
			Endpoint:    cfg.LLM.Endpoint,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	} else {
		log.Debug().Str("provider", cfg.LLM.Provider).Msg("no synthesis provider; templated summaries only")
	}

	a := New(
		classifier.New(),
		plan.NewBuilder(profiles),
		plan.NewResolver(profiles),
		coordinator,
		synth.NewSynthesizer(provider),
		events,
	)

	return &System{
		Assistant:   a,
		Bus:         events,
		Coordinator: coordinator,
		Store:       store,
		Executor:    executor,
	}, nil
}

// buildVectorIndex hydrates the in-memory semantic index from the
// stored items. Items that fail to embed are skipped, not fatal.
func buildVectorIndex(cfg *config.Config, store *knowledge.Store) (*knowledge.VectorIndex, error) {
	ctx := context.Background()
	embedder := knowledge.NewOllamaEmbedder(cfg.LLM.Endpoint, cfg.Knowledge.EmbedModel)
	index := knowledge.NewVectorIndex(embedder)

	items, err := store.Items(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := index.Add(ctx, &items[i]); err != nil {
			log.Warn().Err(err).Str("item_id", items[i].ID).Msg("skipping item in semantic index")
		}
	}
	log.Debug().Int("indexed", index.Len()).Int("stored", len(items)).Msg("semantic index ready")
	return index, nil
}

// Close releases the system's resources.
func (s *System) Close() {
	if s.Bus != nil {
		s.Bus.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}
