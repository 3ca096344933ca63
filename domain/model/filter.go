// Package model provides domain model for tablens
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator is a filter comparison operator.
type Operator int

const (
	// OperatorEquals matches cells equal to the literal, ignoring case
	OperatorEquals Operator = iota
	// OperatorNotEquals matches cells not equal to the literal, ignoring case
	OperatorNotEquals
	// OperatorContains matches cells containing the literal, ignoring case
	OperatorContains
	// OperatorNotContains matches cells not containing the literal, ignoring case
	OperatorNotContains
	// OperatorStartsWith matches cells beginning with the literal, ignoring case
	OperatorStartsWith
	// OperatorEndsWith matches cells ending with the literal, ignoring case
	OperatorEndsWith
	// OperatorGreaterThan matches cells ordered strictly after the literal
	OperatorGreaterThan
	// OperatorLessThan matches cells ordered strictly before the literal
	OperatorLessThan
	// OperatorGreaterOrEqual matches cells ordered at or after the literal
	OperatorGreaterOrEqual
	// OperatorLessOrEqual matches cells ordered at or before the literal
	OperatorLessOrEqual
)

// String returns a human-readable operator name for action descriptions.
func (op Operator) String() string {
	switch op {
	case OperatorEquals:
		return "equals"
	case OperatorNotEquals:
		return "not equals"
	case OperatorContains:
		return "contains"
	case OperatorNotContains:
		return "not contains"
	case OperatorStartsWith:
		return "starts with"
	case OperatorEndsWith:
		return "ends with"
	case OperatorGreaterThan:
		return "greater than"
	case OperatorLessThan:
		return "less than"
	case OperatorGreaterOrEqual:
		return "greater or equal"
	case OperatorLessOrEqual:
		return "less or equal"
	default:
		return "unknown"
	}
}

// Relational reports whether the operator compares ordered values rather
// than strings. Relational operators require a Comparable column type.
func (op Operator) Relational() bool {
	switch op {
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual:
		return true
	default:
		return false
	}
}

// valid reports whether the operator is one of the defined constants.
func (op Operator) valid() bool {
	return op >= OperatorEquals && op <= OperatorLessOrEqual
}

// FilterSpec is a fully resolved, immutable filter: a source column
// position, the column's effective type, an operator, and a literal
// pre-parsed according to that type.
//
// Match is a pure function and performs no heap allocation, so it is safe
// to call for every visible row on every repaint.
type FilterSpec struct {
	// Column is the position of the filtered column in the source row,
	// which viewer actions never change.
	Column int
	// Name is the column's display name at resolution time.
	Name string
	// Type is the column's effective type at resolution time.
	Type ColumnType
	// Op is the comparison operator.
	Op Operator
	// Value is the raw filter literal.
	Value string

	intValue  int64
	realValue float64
	timeValue time.Time
	literalOK bool
}

// NewFilterSpec resolves a filter against a column. Relational operators
// require a Comparable column type and fail with ErrOperatorMismatch
// otherwise. A relational literal that does not parse under the column
// type's rule yields a valid spec that matches no rows.
func NewFilterSpec(column int, name string, typ ColumnType, op Operator, value string) (FilterSpec, error) {
	if !op.valid() {
		return FilterSpec{}, fmt.Errorf("%w: %d", ErrUnknownOperator, int(op))
	}

	spec := FilterSpec{Column: column, Name: name, Type: typ, Op: op, Value: value}
	if !op.Relational() {
		return spec, nil
	}

	if !typ.Comparable() {
		return FilterSpec{}, fmt.Errorf("%w: %s on %s column %q", ErrOperatorMismatch, op, typ, name)
	}

	literal := strings.TrimSpace(value)
	switch typ {
	case ColumnTypeInteger:
		n, err := strconv.ParseInt(literal, 10, 64)
		spec.intValue = n
		spec.literalOK = err == nil
	case ColumnTypeReal:
		f, err := strconv.ParseFloat(literal, 64)
		spec.realValue = f
		spec.literalOK = err == nil
	case ColumnTypeDatetime:
		t, ok := ParseTimestamp(literal)
		spec.timeValue = t
		spec.literalOK = ok
	}
	return spec, nil
}

// Match reports whether a single cell satisfies the filter.
//
// String operators compare case-insensitively. Relational operators parse
// the cell under the column type's canonical rule; a cell that does not
// parse never matches, and neither does anything when the literal itself
// did not parse.
func (f FilterSpec) Match(cell string) bool {
	switch f.Op {
	case OperatorEquals:
		return strings.EqualFold(cell, f.Value)
	case OperatorNotEquals:
		return !strings.EqualFold(cell, f.Value)
	case OperatorContains:
		return containsFold(cell, f.Value)
	case OperatorNotContains:
		return !containsFold(cell, f.Value)
	case OperatorStartsWith:
		return hasPrefixFold(cell, f.Value)
	case OperatorEndsWith:
		return hasSuffixFold(cell, f.Value)
	}

	if !f.literalOK {
		return false
	}

	cell = strings.TrimSpace(cell)
	switch f.Type {
	case ColumnTypeInteger:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return false
		}
		return f.compareInt(n)
	case ColumnTypeReal:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return false
		}
		return f.compareReal(v)
	case ColumnTypeDatetime:
		t, ok := ParseTimestamp(cell)
		if !ok {
			return false
		}
		return f.compareTime(t)
	default:
		return false
	}
}

// compareInt applies the relational operator to an integer cell value.
func (f FilterSpec) compareInt(n int64) bool {
	switch f.Op {
	case OperatorGreaterThan:
		return n > f.intValue
	case OperatorLessThan:
		return n < f.intValue
	case OperatorGreaterOrEqual:
		return n >= f.intValue
	case OperatorLessOrEqual:
		return n <= f.intValue
	default:
		return false
	}
}

// compareReal applies the relational operator to a real cell value.
func (f FilterSpec) compareReal(v float64) bool {
	switch f.Op {
	case OperatorGreaterThan:
		return v > f.realValue
	case OperatorLessThan:
		return v < f.realValue
	case OperatorGreaterOrEqual:
		return v >= f.realValue
	case OperatorLessOrEqual:
		return v <= f.realValue
	default:
		return false
	}
}

// compareTime applies the relational operator to a datetime cell value.
func (f FilterSpec) compareTime(t time.Time) bool {
	switch f.Op {
	case OperatorGreaterThan:
		return t.After(f.timeValue)
	case OperatorLessThan:
		return t.Before(f.timeValue)
	case OperatorGreaterOrEqual:
		return !t.Before(f.timeValue)
	case OperatorLessOrEqual:
		return !t.After(f.timeValue)
	default:
		return false
	}
}

// MatchRow reports whether a row satisfies every filter in specs.
// Cells beyond the end of a ragged row evaluate as empty.
func MatchRow(specs []FilterSpec, row []string) bool {
	for i := range specs {
		var cell string
		if specs[i].Column >= 0 && specs[i].Column < len(row) {
			cell = row[specs[i].Column]
		}
		if !specs[i].Match(cell) {
			return false
		}
	}
	return true
}

// foldByte lowercases a single ASCII byte.
func foldByte(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c
}

// hasPrefixFold reports whether s begins with prefix under ASCII case folding.
func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if foldByte(s[i]) != foldByte(prefix[i]) {
			return false
		}
	}
	return true
}

// hasSuffixFold reports whether s ends with suffix under ASCII case folding.
func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	off := len(s) - len(suffix)
	for i := 0; i < len(suffix); i++ {
		if foldByte(s[off+i]) != foldByte(suffix[i]) {
			return false
		}
	}
	return true
}

// containsFold reports whether s contains substr under ASCII case folding,
// scanning in place so the hot path stays allocation-free.
func containsFold(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	if len(substr) > len(s) {
		return false
	}
	first := foldByte(substr[0])
	for i := 0; i+len(substr) <= len(s); i++ {
		if foldByte(s[i]) != first {
			continue
		}
		if hasPrefixFold(s[i:], substr) {
			return true
		}
	}
	return false
}
