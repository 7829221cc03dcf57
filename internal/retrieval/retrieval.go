package retrieval

// #region imports
import (
	"context"
	"fmt"
	"log"

	"github.com/docubot-ai/engine/internal/store"
	"github.com/docubot-ai/engine/internal/vectorstore"
)

// #endregion

// #region embedder

// Embedder is the slice of the embedding gateway the retriever needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// #endregion

// #region retriever

// Retriever runs tenant-scoped similarity retrieval with threshold
// filtering, adaptive result sizing, and token-budget trimming.
type Retriever struct {
	embedder Embedder
	index    vectorstore.Index
	config   Config
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, index vectorstore.Index, config Config) *Retriever {
	return &Retriever{embedder: embedder, index: index, config: config}
}

// #endregion retriever

// #region retrieve

// Retrieve embeds the question and returns the kept chunks, best first.
// An empty result is not an error; only transport failures are.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, question string) ([]store.ChunkMatch, error) {
	vec, err := r.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return r.RetrieveByVector(ctx, tenantID, vec)
}

// RetrieveByVector runs the retrieval pipeline over an already-embedded
// query vector:
//  1. Fetch 2×top_k nearest neighbors, tenant-scoped.
//  2. Drop candidates below the similarity threshold.
//  3. Adaptive sizing: a confident best hit narrows the window to top_k
//     but never below min(MinResults, len(filtered)); a weak best hit
//     keeps min(top_k, len(filtered)).
//  4. Trim in rank order against the estimated-token budget.
func (r *Retriever) RetrieveByVector(ctx context.Context, tenantID string, vec []float32) ([]store.ChunkMatch, error) {
	candidates, err := r.index.Nearest(ctx, tenantID, vec, 2*r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	filtered := make([]store.ChunkMatch, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= r.config.SimilarityThreshold {
			filtered = append(filtered, c)
		}
	}

	var keep int
	if len(filtered) > 0 && filtered[0].Score > r.config.ConfidentScore {
		keep = min(r.config.TopK, max(r.config.MinResults, len(filtered)))
	} else {
		keep = min(r.config.TopK, len(filtered))
	}
	if keep > len(filtered) {
		keep = len(filtered)
	}
	selected := filtered[:keep]

	var trimmed []store.ChunkMatch
	totalTokens := 0
	for _, c := range selected {
		tokens := EstimateTokens(c.Content)
		if totalTokens+tokens > r.config.MaxContextTokens {
			break
		}
		trimmed = append(trimmed, c)
		totalTokens += tokens
	}

	log.Printf("[RETRIEVAL] candidates=%d threshold=%d final=%d tokens=%d",
		len(candidates), len(filtered), len(trimmed), totalTokens)

	return trimmed, nil
}

// #endregion retrieve
