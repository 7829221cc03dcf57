package structured

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/docubot-ai/engine/internal/llm"
)

// #endregion

// #region completion-client

// CompletionClient is the slice of the completion gateway the generator
// needs. Satisfied by *llm.Client and by test fakes.
type CompletionClient interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float32, maxTokens int) (string, error)
}

// #endregion

// #region prompt

const generationPrompt = `You are a SQLite query generator. Generate a single SELECT query to answer the user's question.

TABLE: structured_rows
- Each row has a JSON column called fields containing the actual data.
- You MUST access column values using: json_extract(fields, '$.ColumnName').
- Use CAST(json_extract(fields, '$.ColumnName') AS REAL) for numeric operations (SUM, COUNT, AVG, MAX, MIN).
- The table also has: tenant_id (text), source_id (text), sheet_name (text), row_number (integer).

SCHEMA (columns inside fields):
%s
TOTAL ROWS: %d

RULES:
1. Generate ONLY a single SELECT statement.
2. Always include WHERE tenant_id = :tenant_id
3. Use json_extract(fields, '$.ColumnName') for text comparisons (case-insensitive with LIKE when appropriate).
4. Use CAST(json_extract(fields, '$.ColumnName') AS REAL) for numeric aggregates.
5. For COUNT questions, use COUNT(*) with appropriate WHERE filters.
6. For listing questions, select the relevant fields columns.
7. Add LIMIT 100 for row listing queries.
8. Do NOT use INSERT, UPDATE, DELETE, DROP, ALTER, or TRUNCATE.
9. Do NOT use subqueries or JOINs.
10. Return ONLY the SQL query, nothing else. No markdown, no explanation.

USER QUESTION: %s

SQL:`

// #endregion

// #region generator

// Generator turns (question, schema) into candidate query text via the
// completion gateway. Its output is untrusted and MUST pass Validate
// before execution.
type Generator struct {
	llm CompletionClient
}

// NewGenerator creates a Generator.
func NewGenerator(client CompletionClient) *Generator {
	return &Generator{llm: client}
}

// Generate produces candidate SQL at temperature 0 and strips markdown
// code fences from the reply.
func (g *Generator) Generate(ctx context.Context, question string, schema Schema) (string, error) {
	prompt := fmt.Sprintf(generationPrompt, renderSchema(schema), schema.TotalRows, question)

	messages := []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: question},
	}
	raw, err := g.llm.Complete(ctx, messages, 0, 0)
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	return stripFences(raw), nil
}

// #endregion

// #region schema-rendering

func renderSchema(schema Schema) string {
	var b strings.Builder
	for _, sheet := range schema.Sheets {
		fmt.Fprintf(&b, "SHEET %q (%d rows):\n", sheet.Name, sheet.RowCount)
		for _, col := range sheet.Columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", col.Name, col.Type)
		}
	}
	return b.String()
}

// #endregion

// #region fence-stripping

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z]*\n?")
	fenceClose = regexp.MustCompile("\n?```$")
)

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = fenceOpen.ReplaceAllString(s, "")
		s = fenceClose.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// #endregion
