package structured

// #region column-type

// ColumnType is the inferred type of a structured column.
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeNumeric ColumnType = "numeric"
	TypeText    ColumnType = "text"
)

// #endregion

// #region schema

// Column is one named column with its inferred type.
type Column struct {
	Name string
	Type ColumnType
}

// SheetSchema describes one logical sheet.
type SheetSchema struct {
	Name     string
	Columns  []Column
	RowCount int
}

// Schema is the derived read model over a tenant's structured rows. It is
// recomputed per query and never stored.
type Schema struct {
	Sheets    []SheetSchema
	TotalRows int
}

// Empty reports whether no sheet carries any column.
func (s Schema) Empty() bool {
	for _, sheet := range s.Sheets {
		if len(sheet.Columns) > 0 {
			return false
		}
	}
	return true
}

// #endregion
