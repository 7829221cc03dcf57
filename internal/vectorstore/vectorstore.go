// Package vectorstore provides the tenant-scoped cosine-similarity index
// over chunk vectors. Two implementations exist: a brute-force scan over
// the engine's SQLite chunks table (default) and an embedded chromem-go
// collection per tenant.
package vectorstore

// #region imports
import (
	"context"
	"fmt"

	"github.com/docubot-ai/engine/internal/config"
	"github.com/docubot-ai/engine/internal/store"
)

// #endregion

// #region index-interface

// Index is a cosine-similarity index over chunk vectors. Every call is
// tenant-scoped; an implementation must never return another tenant's
// chunks.
type Index interface {
	// ReplaceSource atomically swaps all chunks for (tenant, source).
	ReplaceSource(ctx context.Context, tenantID, sourceID string, chunks []store.Chunk) error

	// Nearest returns up to limit tenant chunks ranked by cosine
	// similarity to the query vector, best first.
	Nearest(ctx context.Context, tenantID string, query []float32, limit int) ([]store.ChunkMatch, error)
}

// #endregion index-interface

// #region factory

// New builds the configured Index implementation.
func New(cfg config.VectorStoreConfig, st *store.Store) (Index, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteIndex(st), nil
	case "chromem":
		if cfg.Path == "" {
			return nil, fmt.Errorf("vector store type chromem requires a path")
		}
		return NewChromemIndex(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}

// #endregion factory
