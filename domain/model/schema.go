// Package model provides domain model for tablens
package model

import "fmt"

// Column describes a single column of a tabular file.
//
// Index is the position of the column in the source file and never changes,
// even when viewer actions rename or hide the column. Nullable records that
// at least one sampled record had no value for this column.
type Column struct {
	Name     string
	Index    int
	Type     ColumnType
	Nullable bool
}

// Schema is the inferred structure of a tabular file.
//
// A Schema is immutable once constructed. Progressive refinement never
// mutates a published schema; it builds a replacement and publishes that,
// so concurrent readers always observe a fully consistent column set.
type Schema struct {
	columns  []Column
	byName   map[string]int
	rowCount int64
	format   string
}

// NewSchema creates a schema from an ordered column list.
// Column indices are normalized to list positions. Duplicate column names
// are rejected because columns are addressed by name in viewer actions.
func NewSchema(columns []Column) (*Schema, error) {
	cols := make([]Column, len(columns))
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := byName[c.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumnName, c.Name)
		}
		c.Index = i
		cols[i] = c
		byName[c.Name] = i
	}
	return &Schema{columns: cols, byName: byName, rowCount: 0}, nil
}

// newSchemaUnchecked builds a schema from columns already known to be
// well-formed, sharing the name map when the caller provides one.
func newSchemaUnchecked(columns []Column, byName map[string]int, rowCount int64, format string) *Schema {
	if byName == nil {
		byName = make(map[string]int, len(columns))
		for i, c := range columns {
			byName[c.Name] = i
		}
	}
	return &Schema{columns: columns, byName: byName, rowCount: rowCount, format: format}
}

// Columns returns the ordered column list. Callers must not modify it.
func (s *Schema) Columns() []Column {
	return s.columns
}

// ColumnCount returns the number of columns.
func (s *Schema) ColumnCount() int {
	return len(s.columns)
}

// ColumnAt returns the column at the given position.
func (s *Schema) ColumnAt(i int) (Column, bool) {
	if i < 0 || i >= len(s.columns) {
		return Column{}, false
	}
	return s.columns[i], true
}

// ColumnByName returns the column with the given name.
func (s *Schema) ColumnByName(name string) (Column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// ColumnIndex returns the position of the named column.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// RowCount returns the number of data records the scanner has accounted
// for, or 0 while the total is still unknown.
func (s *Schema) RowCount() int64 {
	return s.rowCount
}

// WithRowCount returns a copy of the schema carrying the given row count.
func (s *Schema) WithRowCount(n int64) *Schema {
	return newSchemaUnchecked(s.columns, s.byName, n, s.format)
}

// Format returns the source format tag the session stamped the schema
// with, such as "csv" or "jsonl", or "" for schemas built outside a
// session.
func (s *Schema) Format() string {
	return s.format
}

// WithFormat returns a copy of the schema carrying the given source format
// tag. Refinement preserves the tag on every republished copy.
func (s *Schema) WithFormat(format string) *Schema {
	return newSchemaUnchecked(s.columns, s.byName, s.rowCount, format)
}

// Equal reports whether two schemas have the same columns. Row counts and
// the format tag are provenance, not shape, and are not compared.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i, c := range s.columns {
		if c != other.columns[i] {
			return false
		}
	}
	return true
}

// RefineSchema folds one positional record into the schema and returns the
// resulting schema. The input schema is never mutated; when the record adds
// no information the input is returned unchanged, which also makes the
// operation idempotent for a given record.
//
// A cell that is empty or missing marks its column nullable. A present cell
// widens the column type through MergeColumnType.
func RefineSchema(s *Schema, record []string) *Schema {
	var cols []Column

	for i, c := range s.columns {
		var value string
		if i < len(record) {
			value = record[i]
		}

		updated := c
		observed := ClassifyValue(value)
		if observed == ColumnTypeUnknown {
			updated.Nullable = true
		} else if merged := MergeColumnType(c.Type, observed); merged != c.Type {
			updated.Type = merged
		}

		if updated != c {
			if cols == nil {
				cols = make([]Column, len(s.columns))
				copy(cols, s.columns)
			}
			cols[i] = updated
		}
	}

	if cols == nil {
		return s
	}
	return newSchemaUnchecked(cols, s.byName, s.rowCount, s.format)
}

// FieldObservation is a single named value observation from a keyed record
// format such as JSON Lines or LTSV. Null marks an explicit null value;
// Type is ColumnTypeUnknown in that case.
type FieldObservation struct {
	Name string
	Type ColumnType
	Null bool
}

// RefineSchemaFields folds one keyed record into the schema and returns the
// resulting schema, copy-on-write like RefineSchema.
//
// Known fields widen their column; explicit nulls and absent columns turn
// nullable. A field name the schema has never seen joins as a new trailing
// column, nullable because every earlier record lacked it.
func RefineSchemaFields(s *Schema, fields []FieldObservation) *Schema {
	var cols []Column
	mutate := func(i int, c Column) {
		if cols == nil {
			cols = make([]Column, len(s.columns), len(s.columns)+1)
			copy(cols, s.columns)
		}
		cols[i] = c
	}

	seen := make([]bool, len(s.columns))
	var appended []Column

	for _, f := range fields {
		i, ok := s.byName[f.Name]
		if !ok {
			// Check columns appended by this same record.
			dup := false
			for _, a := range appended {
				if a.Name == f.Name {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			typ := f.Type
			if typ == ColumnTypeUnknown {
				typ = ColumnTypeText
			}
			appended = append(appended, Column{
				Name:     f.Name,
				Index:    len(s.columns) + len(appended),
				Type:     typ,
				Nullable: true,
			})
			continue
		}

		seen[i] = true
		c := s.columns[i]
		if cols != nil {
			c = cols[i]
		}
		updated := c
		if f.Null || f.Type == ColumnTypeUnknown {
			updated.Nullable = true
		} else if merged := MergeColumnType(c.Type, f.Type); merged != c.Type {
			updated.Type = merged
		}
		if updated != c {
			mutate(i, updated)
		}
	}

	for i, ok := range seen {
		if ok {
			continue
		}
		c := s.columns[i]
		if cols != nil {
			c = cols[i]
		}
		if !c.Nullable {
			c.Nullable = true
			mutate(i, c)
		}
	}

	if cols == nil && appended == nil {
		return s
	}
	if cols == nil {
		cols = make([]Column, len(s.columns), len(s.columns)+len(appended))
		copy(cols, s.columns)
	}
	cols = append(cols, appended...)
	return newSchemaUnchecked(cols, nil, s.rowCount, s.format)
}
