package vectorstore

// #region imports
import (
	"context"

	"github.com/docubot-ai/engine/internal/store"
)

// #endregion

// #region sqlite-index

// SQLiteIndex scans the tenant's chunks table and ranks by cosine
// similarity in process. Fine for the corpus sizes a single chatbot
// carries; swap to chromem for larger knowledge bases.
type SQLiteIndex struct {
	store *store.Store
}

// NewSQLiteIndex wraps the engine store.
func NewSQLiteIndex(st *store.Store) *SQLiteIndex {
	return &SQLiteIndex{store: st}
}

// ReplaceSource atomically swaps all chunks for (tenant, source).
func (i *SQLiteIndex) ReplaceSource(ctx context.Context, tenantID, sourceID string, chunks []store.Chunk) error {
	return i.store.ReplaceChunks(ctx, tenantID, sourceID, chunks)
}

// Nearest returns the tenant's most similar chunks, best first.
func (i *SQLiteIndex) Nearest(ctx context.Context, tenantID string, query []float32, limit int) ([]store.ChunkMatch, error) {
	return i.store.NearestChunks(ctx, tenantID, query, limit)
}

// #endregion sqlite-index
