package app

import (
	"fmt"

	"github.com/aquib-J/mysecondbrain-backend/internal/clients/openai"
	"github.com/aquib-J/mysecondbrain-backend/internal/ingestion/parser"
	"github.com/aquib-J/mysecondbrain-backend/internal/ingestion/pipeline"
	"github.com/aquib-J/mysecondbrain-backend/internal/jobs/scheduler"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/weaviate"
	"github.com/aquib-J/mysecondbrain-backend/internal/query"
)

type Services struct {
	OpenAI      openai.Client
	VectorStore *weaviate.Store
	Pipeline    *pipeline.Service
	Scheduler   *scheduler.Scheduler
	Query       *query.Service
}

func wireServices(log *logger.Logger, repos Repos) (Services, error) {
	log.Info("Wiring services...")

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}

	weavCfg, err := weaviate.ResolveConfigFromEnv()
	if err != nil {
		return Services{}, fmt.Errorf("resolve weaviate config: %w", err)
	}
	store, err := weaviate.NewStore(log, weavCfg)
	if err != nil {
		return Services{}, fmt.Errorf("init weaviate store: %w", err)
	}

	registry, err := parser.NewDefaultRegistry(log)
	if err != nil {
		return Services{}, fmt.Errorf("init parser registry: %w", err)
	}
	embedder, err := pipeline.NewBatchEmbedder(log, openaiClient)
	if err != nil {
		return Services{}, fmt.Errorf("init embedder: %w", err)
	}
	pipelineSvc, err := pipeline.NewService(log, repos.Jobs, repos.Vectors, store, embedder, registry)
	if err != nil {
		return Services{}, fmt.Errorf("init pipeline: %w", err)
	}

	sched, err := scheduler.New(log, repos.Jobs, pipelineSvc)
	if err != nil {
		return Services{}, fmt.Errorf("init scheduler: %w", err)
	}

	classifier, err := query.NewIntentClassifier(log, openaiClient)
	if err != nil {
		return Services{}, fmt.Errorf("init intent classifier: %w", err)
	}
	querySvc, err := query.NewService(log, classifier, openaiClient, store)
	if err != nil {
		return Services{}, fmt.Errorf("init query service: %w", err)
	}

	return Services{
		OpenAI:      openaiClient,
		VectorStore: store,
		Pipeline:    pipelineSvc,
		Scheduler:   sched,
		Query:       querySvc,
	}, nil
}
