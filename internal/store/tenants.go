package store

// #region imports
import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #endregion

// #region upsert-tenant

// UpsertTenant registers a tenant and its persona (system prompt).
func (s *Store) UpsertTenant(ctx context.Context, tenantID, persona string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (tenant_id, persona, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET persona = excluded.persona`,
		tenantID, persona, now,
	)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

// #endregion upsert-tenant

// #region persona

// Persona returns the tenant's system prompt, or "" when unset.
func (s *Store) Persona(ctx context.Context, tenantID string) (string, error) {
	var persona sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT persona FROM tenants WHERE tenant_id = ?`, tenantID,
	).Scan(&persona)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get persona: %w", err)
	}
	if !persona.Valid {
		return "", nil
	}
	return persona.String, nil
}

// #endregion persona
