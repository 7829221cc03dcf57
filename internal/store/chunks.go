package store

// #region imports
import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region chunk-types

// Chunk is a bounded span of extracted document text plus its embedding.
// Chunks are immutable; a re-sync of a source replaces them wholesale.
type Chunk struct {
	ID       string
	TenantID string
	SourceID string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// ChunkMatch is a ranked similarity-search hit.
type ChunkMatch struct {
	ID       string
	Content  string
	Metadata map[string]string
	Score    float32
}

// #endregion chunk-types

// #region replace-chunks

// ReplaceChunks atomically swaps all chunks for (tenant, source).
// Chunks without an ID get one assigned.
func (s *Store) ReplaceChunks(ctx context.Context, tenantID, sourceID string, chunks []Chunk) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE tenant_id = ? AND source_id = ?`,
		tenantID, sourceID,
	); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		var metaJSON interface{}
		if len(c.Metadata) > 0 {
			b, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshal chunk metadata: %w", err)
			}
			metaJSON = string(b)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (chunk_id, tenant_id, source_id, content, embedding, metadata_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, tenantID, sourceID, c.Content, encodeVector(c.Vector), metaJSON, now,
		); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

// #endregion replace-chunks

// #region nearest-chunks

// NearestChunks returns up to limit chunks for the tenant ranked by
// cosine similarity to the query vector, best first.
func (s *Store) NearestChunks(ctx context.Context, tenantID string, query []float32, limit int) ([]ChunkMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, content, embedding, metadata_json FROM chunks WHERE tenant_id = ?`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []ChunkMatch
	for rows.Next() {
		var (
			id       string
			content  string
			vecBlob  []byte
			metaJSON *string
		)
		if err := rows.Scan(&id, &content, &vecBlob, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		m := ChunkMatch{
			ID:      id,
			Content: content,
			Score:   cosineSimilarity(query, decodeVector(vecBlob)),
		}
		if metaJSON != nil && *metaJSON != "" {
			if err := json.Unmarshal([]byte(*metaJSON), &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CountChunks returns the number of chunks stored for a tenant.
func (s *Store) CountChunks(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE tenant_id = ?`, tenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// #endregion nearest-chunks

// #region vector-encoding

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// #endregion vector-encoding
