// Package model provides domain model for tablens
package model

import "fmt"

// SchemaBuilder accumulates per-column type observations over an initial
// sample of records and produces the first published schema.
//
// It exists for the sampling phase only. Once a schema is published,
// refinement goes through RefineSchema and RefineSchemaFields, which work
// copy-on-write against immutable schemas.
type SchemaBuilder struct {
	cols   []Column
	byName map[string]int
	count  int64
}

// NewSchemaBuilder creates a builder with no predeclared columns. Keyed
// formats like JSON Lines grow the column set as records introduce keys,
// in first-seen order.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{byName: make(map[string]int)}
}

// NewSchemaBuilderColumns creates a builder whose column set is fixed by a
// header row. Duplicate header names are rejected.
func NewSchemaBuilderColumns(names []string) (*SchemaBuilder, error) {
	b := &SchemaBuilder{
		cols:   make([]Column, 0, len(names)),
		byName: make(map[string]int, len(names)),
	}
	for _, name := range names {
		if _, ok := b.byName[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumnName, name)
		}
		b.byName[name] = len(b.cols)
		b.cols = append(b.cols, Column{Name: name, Index: len(b.cols), Type: ColumnTypeUnknown})
	}
	return b, nil
}

// ObserveRecord folds one positional record into the builder state.
// Missing or empty cells mark their column nullable; extra cells beyond the
// header are ignored.
func (b *SchemaBuilder) ObserveRecord(record []string) {
	for i := range b.cols {
		var value string
		if i < len(record) {
			value = record[i]
		}
		observed := ClassifyValue(value)
		if observed == ColumnTypeUnknown {
			b.cols[i].Nullable = true
			continue
		}
		b.cols[i].Type = MergeColumnType(b.cols[i].Type, observed)
	}
	b.count++
}

// ObserveFields folds one keyed record into the builder state. A key seen
// for the first time after earlier records is born nullable, and known keys
// absent from this record turn nullable.
func (b *SchemaBuilder) ObserveFields(fields []FieldObservation) {
	seen := make([]bool, len(b.cols))

	for _, f := range fields {
		i, ok := b.byName[f.Name]
		if !ok {
			col := Column{Name: f.Name, Index: len(b.cols), Type: f.Type, Nullable: b.count > 0}
			if f.Null {
				col.Type = ColumnTypeUnknown
				col.Nullable = true
			}
			b.byName[f.Name] = len(b.cols)
			b.cols = append(b.cols, col)
			seen = append(seen, true)
			continue
		}

		seen[i] = true
		if f.Null || f.Type == ColumnTypeUnknown {
			b.cols[i].Nullable = true
			continue
		}
		b.cols[i].Type = MergeColumnType(b.cols[i].Type, f.Type)
	}

	for i, ok := range seen {
		if !ok {
			b.cols[i].Nullable = true
		}
	}
	b.count++
}

// Count returns the number of records observed so far.
func (b *SchemaBuilder) Count() int64 {
	return b.count
}

// Build finalizes the observations into a schema. Columns that never saw a
// non-empty value fall back to Text, the safe type for display and string
// filtering. The builder must not be used after Build.
func (b *SchemaBuilder) Build() *Schema {
	cols := make([]Column, len(b.cols))
	copy(cols, b.cols)
	for i := range cols {
		if cols[i].Type == ColumnTypeUnknown {
			cols[i].Type = ColumnTypeText
		}
	}
	return newSchemaUnchecked(cols, nil, 0, "")
}
