package store

// #region imports
import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region row-type

// StructuredRow is one spreadsheet row. Field values are limited to
// int64, float64, and string. Rows are immutable; a re-sync deletes and
// recreates all rows for a source atomically.
type StructuredRow struct {
	ID        string
	TenantID  string
	SourceID  string
	SheetName string
	RowNumber int
	Fields    map[string]any
}

// #endregion row-type

// #region replace-rows

// ReplaceRows atomically swaps all structured rows for (tenant, source).
func (s *Store) ReplaceRows(ctx context.Context, tenantID, sourceID string, rows []StructuredRow) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM structured_rows WHERE tenant_id = ? AND source_id = ?`,
		tenantID, sourceID,
	); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	for _, r := range rows {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		fieldsJSON, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO structured_rows (row_id, tenant_id, source_id, sheet_name, row_number, fields, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, tenantID, sourceID, r.SheetName, r.RowNumber, string(fieldsJSON), now,
		); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	return tx.Commit()
}

// #endregion replace-rows

// #region row-queries

// HasStructuredData reports whether the tenant has any structured rows.
func (s *Store) HasStructuredData(ctx context.Context, tenantID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT 1 FROM structured_rows WHERE tenant_id = ? LIMIT 1)`,
		tenantID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check structured data: %w", err)
	}
	return n > 0, nil
}

// DistinctSheets lists the sheet names stored for a tenant.
func (s *Store) DistinctSheets(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT sheet_name FROM structured_rows WHERE tenant_id = ? ORDER BY sheet_name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("distinct sheets: %w", err)
	}
	defer rows.Close()

	var sheets []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		sheets = append(sheets, name)
	}
	return sheets, rows.Err()
}

// SampleRow returns the fields of one row for (tenant, sheet), or nil
// when the sheet is empty. Integer-valued fields decode as int64,
// fractional as float64, everything else as string.
func (s *Store) SampleRow(ctx context.Context, tenantID, sheetName string) (map[string]any, error) {
	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM structured_rows WHERE tenant_id = ? AND sheet_name = ? LIMIT 1`,
		tenantID, sheetName,
	).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sample row: %w", err)
	}
	return decodeFields([]byte(fieldsJSON))
}

// CountRows counts a tenant's rows, optionally scoped to one sheet.
func (s *Store) CountRows(ctx context.Context, tenantID, sheetName string) (int, error) {
	var (
		n   int
		err error
	)
	if sheetName == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM structured_rows WHERE tenant_id = ?`, tenantID,
		).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM structured_rows WHERE tenant_id = ? AND sheet_name = ?`,
			tenantID, sheetName,
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// #endregion row-queries

// #region run-select

// RunSelect executes an already-validated SELECT with the tenant bound as
// the :tenant_id named parameter. The tenant value is never interpolated
// into the query text.
func (s *Store) RunSelect(ctx context.Context, tenantID, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, sql.Named("tenant_id", tenantID))
	if err != nil {
		return nil, fmt.Errorf("run select: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = normalizeValue(values[i])
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

// #endregion run-select

// #region value-shaping

// decodeFields unmarshals a fields JSON object preserving the
// integer/float distinction lost by default float64 decoding.
func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[k] = normalizeValue(v)
	}
	return fields, nil
}

// normalizeValue maps driver and JSON values onto int64/float64/string.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []byte:
		return string(t)
	case int64, float64, string, bool:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// #endregion value-shaping
