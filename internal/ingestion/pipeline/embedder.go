package pipeline

import (
	"context"
	"fmt"

	"github.com/aquib-J/mysecondbrain-backend/internal/clients/openai"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/envutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

const defaultEmbedBatchSize = 20

// Embedder turns chunk texts into vectors. Implementations preserve order:
// result[i] is the vector for texts[i].
type Embedder interface {
	EmbedChunks(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// BatchEmbedder calls the provider in fixed-size sequential batches. Any
// batch failure fails the whole call; the pipeline never persists a
// partially embedded document.
type BatchEmbedder struct {
	log       *logger.Logger
	client    openai.Client
	batchSize int
}

func NewBatchEmbedder(log *logger.Logger, client openai.Client) (*BatchEmbedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("openai client required")
	}
	batchSize := envutil.Int("EMBEDDING_BATCH_SIZE", defaultEmbedBatchSize)
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &BatchEmbedder{
		log:       log.With("service", "BatchEmbedder"),
		client:    client,
		batchSize: batchSize,
	}, nil
}

func (e *BatchEmbedder) Model() string {
	return e.client.EmbedModel()
}

func (e *BatchEmbedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	ctx = ctxutil.Default(ctx)
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := e.client.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf(
				"embed batch %d-%d: provider returned %d vectors for %d inputs",
				start, end-1, len(vectors), len(batch),
			)
		}
		out = append(out, vectors...)
	}

	e.log.Debug("Embedded chunk texts", "count", len(out), "batch_size", e.batchSize)
	return out, nil
}
