package structured

// #region imports
import (
	"context"
	"fmt"
	"sort"
)

// #endregion

// #region row-sampler

// RowSampler is the slice of the row store the inspector needs.
type RowSampler interface {
	DistinctSheets(ctx context.Context, tenantID string) ([]string, error)
	SampleRow(ctx context.Context, tenantID, sheetName string) (map[string]any, error)
	CountRows(ctx context.Context, tenantID, sheetName string) (int, error)
}

// #endregion

// #region inspector

// Inspector derives a column schema per sheet by sampling one
// representative row. Heterogeneous rows are tolerated; the sample is not
// authoritative for every row, so callers must treat types as hints.
type Inspector struct {
	rows RowSampler
}

// NewInspector creates an Inspector over a row store.
func NewInspector(rows RowSampler) *Inspector {
	return &Inspector{rows: rows}
}

// Inspect computes the tenant's schema: per-sheet columns with inferred
// types, per-sheet row counts, and the aggregate total.
func (i *Inspector) Inspect(ctx context.Context, tenantID string) (Schema, error) {
	sheets, err := i.rows.DistinctSheets(ctx, tenantID)
	if err != nil {
		return Schema{}, fmt.Errorf("list sheets: %w", err)
	}

	var schema Schema
	for _, sheet := range sheets {
		sample, err := i.rows.SampleRow(ctx, tenantID, sheet)
		if err != nil {
			return Schema{}, fmt.Errorf("sample sheet %s: %w", sheet, err)
		}
		if sample == nil {
			continue
		}
		count, err := i.rows.CountRows(ctx, tenantID, sheet)
		if err != nil {
			return Schema{}, fmt.Errorf("count sheet %s: %w", sheet, err)
		}

		schema.Sheets = append(schema.Sheets, SheetSchema{
			Name:     sheet,
			Columns:  inferColumns(sample),
			RowCount: count,
		})
		schema.TotalRows += count
	}
	return schema, nil
}

// #endregion

// #region type-inference

// inferColumns maps a sampled row's values onto column types. Columns
// come back name-sorted so the schema is stable across calls.
func inferColumns(sample map[string]any) []Column {
	names := make([]string, 0, len(sample))
	for name := range sample {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		cols = append(cols, Column{Name: name, Type: inferType(sample[name])})
	}
	return cols
}

func inferType(v any) ColumnType {
	switch v.(type) {
	case int, int64:
		return TypeInteger
	case float32, float64:
		return TypeNumeric
	default:
		return TypeText
	}
}

// #endregion
