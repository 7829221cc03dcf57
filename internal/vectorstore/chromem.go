package vectorstore

// #region imports
import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/docubot-ai/engine/internal/store"
)

// #endregion

// #region chromem-index

// ChromemIndex keeps one chromem-go collection per tenant in a persistent
// embedded database. Tenant isolation is the collection boundary.
type ChromemIndex struct {
	db *chromem.DB
}

// NewChromemIndex opens (or creates) the persistent chromem database.
func NewChromemIndex(path string) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemIndex{db: db}, nil
}

func (i *ChromemIndex) collection(tenantID string) (*chromem.Collection, error) {
	col, err := i.db.GetOrCreateCollection("tenant_"+tenantID, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("tenant collection: %w", err)
	}
	return col, nil
}

// #endregion chromem-index

// #region replace-source

// ReplaceSource swaps all chunks for (tenant, source): existing documents
// tagged with the source id are deleted, then the new set is added.
func (i *ChromemIndex) ReplaceSource(ctx context.Context, tenantID, sourceID string, chunks []store.Chunk) error {
	col, err := i.collection(tenantID)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, map[string]string{"source_id": sourceID}, nil); err != nil {
		return fmt.Errorf("delete source chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	contents := make([]string, len(chunks))
	for n, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		ids[n] = c.ID
		embeddings[n] = c.Vector
		meta := map[string]string{"source_id": sourceID}
		for k, v := range c.Metadata {
			meta[k] = v
		}
		metadatas[n] = meta
		contents[n] = c.Content
	}

	if err := col.Add(ctx, ids, embeddings, metadatas, contents); err != nil {
		return fmt.Errorf("add chunks: %w", err)
	}
	return nil
}

// #endregion replace-source

// #region nearest

// Nearest queries the tenant collection by embedding.
func (i *ChromemIndex) Nearest(ctx context.Context, tenantID string, query []float32, limit int) ([]store.ChunkMatch, error) {
	col, err := i.collection(tenantID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults greater than the document count.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	matches := make([]store.ChunkMatch, len(results))
	for n, r := range results {
		matches[n] = store.ChunkMatch{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Similarity,
		}
	}
	return matches, nil
}

// #endregion nearest
