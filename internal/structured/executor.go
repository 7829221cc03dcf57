package structured

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// #endregion

// #region row-runner

// RowRunner executes a validated SELECT with the tenant bound as the
// :tenant_id parameter. Satisfied by *store.Store.
type RowRunner interface {
	RunSelect(ctx context.Context, tenantID, query string) ([]map[string]any, error)
}

// #endregion

// #region executor

var limitPattern = regexp.MustCompile(`(?i)\blimit\b`)

// Executor runs validated queries under a hard row cap. The cap is
// appended server-side when the generated query carries none, bounding
// the worst-case response regardless of what the generator produced.
type Executor struct {
	rows     RowRunner
	rowLimit int
}

// NewExecutor creates an Executor. rowLimit <= 0 means the default 1000.
func NewExecutor(rows RowRunner, rowLimit int) *Executor {
	if rowLimit <= 0 {
		rowLimit = 1000
	}
	return &Executor{rows: rows, rowLimit: rowLimit}
}

// Execute runs the query for the tenant and shapes results into key→value
// maps. Execution errors (e.g. a generated reference to a missing field)
// are declinable, not fatal; the caller decides.
func (e *Executor) Execute(ctx context.Context, tenantID, query string) ([]map[string]any, error) {
	q := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if !limitPattern.MatchString(q) {
		q = fmt.Sprintf("%s LIMIT %d", q, e.rowLimit)
	}
	return e.rows.RunSelect(ctx, tenantID, q)
}

// #endregion
