package conversation

// #region imports
import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region types

// Conversation is a tenant-scoped chat thread.
type Conversation struct {
	ID        string
	TenantID  string
	CreatedAt time.Time
}

// Turn is one message in a conversation.
type Turn struct {
	Role    string
	Content string
}

// #endregion types

// #region store-struct

// Store reads and appends conversation history. It shares the engine
// database (see store.Store.DB).
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// #endregion store-struct

// #region get-or-create

// GetOrCreate resolves conversationID under the tenant, creating a fresh
// conversation when the id is empty or does not belong to the tenant.
func (s *Store) GetOrCreate(ctx context.Context, tenantID, conversationID string) (Conversation, error) {
	if conversationID != "" {
		var createdStr string
		err := s.db.QueryRowContext(ctx,
			`SELECT created_at FROM conversations WHERE conversation_id = ? AND tenant_id = ?`,
			conversationID, tenantID,
		).Scan(&createdStr)
		if err == nil {
			created, _ := time.Parse(time.RFC3339Nano, createdStr)
			return Conversation{ID: conversationID, TenantID: tenantID, CreatedAt: created}, nil
		}
		if err != sql.ErrNoRows {
			return Conversation{}, fmt.Errorf("get conversation: %w", err)
		}
	}

	conv := Conversation{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, tenant_id, created_at) VALUES (?, ?, ?)`,
		conv.ID, conv.TenantID, conv.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// #endregion get-or-create

// #region append-turn

// AppendTurn appends one (role, content) turn. History is append-only.
func (s *Store) AppendTurn(ctx context.Context, conversationID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// #endregion append-turn

// #region recent-turns

// RecentTurns returns the last limit turns in chronological order.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var tn Turn
		if err := rows.Scan(&tn.Role, &tn.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, tn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Newest-first from the query; callers want chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// #endregion recent-turns
