package logging

// #region imports
import (
	"database/sql"
	"fmt"
	"time"
)

// #endregion

// #region decision-entry

// DecisionEntry is a single row in the decision_log table. It records how
// the router answered one question so keyword lists and prompts can be
// tuned offline without surfacing declines to end users.
type DecisionEntry struct {
	TenantID       string
	ConversationID string
	Intent         string
	Path           string // "structured" | "semantic"
	Stage          string // declining stage, empty when the path answered
	Reason         string
	CreatedAt      time.Time
}

// #endregion decision-entry

// #region log-decision

// LogDecision writes a routing decision to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (tenant_id, conversation_id, intent, path, stage, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.TenantID,
		nullIfEmpty(entry.ConversationID),
		entry.Intent,
		entry.Path,
		nullIfEmpty(entry.Stage),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent-decisions

// RecentDecisions returns the newest decisions for a tenant, most recent
// first. Pass tenantID "" for all tenants.
func RecentDecisions(db *sql.DB, tenantID string, limit int) ([]DecisionEntry, error) {
	query := `SELECT tenant_id, conversation_id, intent, path, stage, reason, created_at
		 FROM decision_log`
	args := []any{}
	if tenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var (
			e          DecisionEntry
			convID     sql.NullString
			stage      sql.NullString
			reason     sql.NullString
			createdStr string
		)
		if err := rows.Scan(&e.TenantID, &convID, &e.Intent, &e.Path, &stage, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.ConversationID = convID.String
		e.Stage = stage.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion recent-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
