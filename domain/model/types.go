// Package model provides domain model for tablens
package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ColumnType represents the inferred type of a column.
//
// The zero value is ColumnTypeUnknown, the state of a column before any
// non-empty value has been observed. Published schemas never contain it;
// scanners map it to ColumnTypeText when they finish a scan.
type ColumnType int

const (
	// ColumnTypeUnknown represents a column with no observed values yet
	ColumnTypeUnknown ColumnType = iota
	// ColumnTypeText represents free-form text
	ColumnTypeText
	// ColumnTypeInteger represents whole numbers
	ColumnTypeInteger
	// ColumnTypeReal represents floating-point numbers
	ColumnTypeReal
	// ColumnTypeBool represents boolean literals
	ColumnTypeBool
	// ColumnTypeDatetime represents timestamps in one of the recognized layouts
	ColumnTypeDatetime
)

// Column type display names
const (
	typeNameUnknown  = "UNKNOWN"
	typeNameText     = "TEXT"
	typeNameInteger  = "INTEGER"
	typeNameReal     = "REAL"
	typeNameBool     = "BOOL"
	typeNameDatetime = "DATETIME"
)

// String returns the display name of the column type
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeUnknown:
		return typeNameUnknown
	case ColumnTypeText:
		return typeNameText
	case ColumnTypeInteger:
		return typeNameInteger
	case ColumnTypeReal:
		return typeNameReal
	case ColumnTypeBool:
		return typeNameBool
	case ColumnTypeDatetime:
		return typeNameDatetime
	default:
		return typeNameText
	}
}

// Comparable reports whether values of this type have a numeric or
// chronological ordering. Relational filter operators require it.
func (ct ColumnType) Comparable() bool {
	return ct == ColumnTypeInteger || ct == ColumnTypeReal || ct == ColumnTypeDatetime
}

// MergeColumnType widens a column type with one more observed value type.
//
// The merge is monotonic: a column only ever moves toward a wider type and
// never narrows back. Unknown adopts the first observed type, Integer widens
// to Real when a fractional value appears, and any mix of incompatible types
// collapses to Text permanently.
func MergeColumnType(current, observed ColumnType) ColumnType {
	if current == observed {
		return current
	}
	if current == ColumnTypeUnknown {
		return observed
	}
	if observed == ColumnTypeUnknown {
		return current
	}
	if current == ColumnTypeText || observed == ColumnTypeText {
		return ColumnTypeText
	}
	// Integer and Real share the numeric family; everything else is a mix.
	if (current == ColumnTypeInteger && observed == ColumnTypeReal) ||
		(current == ColumnTypeReal && observed == ColumnTypeInteger) {
		return ColumnTypeReal
	}
	return ColumnTypeText
}

// ClassifyValue determines the column type of a single textual value.
//
// Empty values carry no type information and must be filtered out by the
// caller before classification; passing one returns ColumnTypeUnknown.
func ClassifyValue(value string) ColumnType {
	value = strings.TrimSpace(value)
	if value == "" {
		return ColumnTypeUnknown
	}

	if isBool(value) {
		return ColumnTypeBool
	}

	// Datetime before numbers so that layouts like "15:04:05" or
	// "20060102" variants are not mistaken for numeric values.
	if IsDatetime(value) {
		return ColumnTypeDatetime
	}

	if isInteger(value) {
		return ColumnTypeInteger
	}

	if isFloat(value) {
		return ColumnTypeReal
	}

	return ColumnTypeText
}

// isBool checks for the boolean literals "true" and "false", case-insensitively.
// Numeric forms like "1" and "0" stay numeric.
func isBool(value string) bool {
	return strings.EqualFold(value, "true") || strings.EqualFold(value, "false")
}

// isInteger checks if a value is an integer with optimized parsing
func isInteger(value string) bool {
	if len(value) == 0 {
		return false
	}
	first := value[0]
	if first != '+' && first != '-' && (first < '0' || first > '9') {
		return false
	}

	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

// isFloat checks if a value is a float with optimized parsing
func isFloat(value string) bool {
	hasDigit := false
	for _, r := range value {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}

	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// datetimePattern represents a cached datetime pattern with compiled regex
type datetimePattern struct {
	pattern *regexp.Regexp
	formats []string // Multiple formats for the same pattern
}

// Cached datetime patterns for better performance
var cachedDatetimePatterns = []datetimePattern{
	// ISO8601 formats with timezone (most common first for early termination)
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	// ISO8601 formats without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000"},
	},
	// ISO8601 date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000"},
	},
	// ISO8601 date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
	// US formats
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006", "01/02/2006"},
	},
	// European formats
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`),
		[]string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006", "02.01.2006"},
	},
	// Time only
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"15:04:05", "15:04:05.000", "3:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}$`),
		[]string{"15:04", "3:04"},
	},
}

// Datetime pre-check constants
const (
	// minDatetimeLength is the minimum reasonable length for datetime values
	minDatetimeLength = 4
	// maxDatetimeLength is the maximum reasonable length for datetime values
	maxDatetimeLength = 35
)

// IsDatetime checks if a string value represents a datetime in one of the
// recognized layouts. A value must both match a layout's shape and survive
// a real time.Parse, so "2023-16-99" is not a datetime.
func IsDatetime(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	// Quick length-based filtering to avoid regex on obviously non-datetime values
	valueLen := len(value)
	if valueLen < minDatetimeLength || valueLen > maxDatetimeLength {
		return false
	}

	// Quick character check - datetime must contain at least one digit and separator
	hasDigit := false
	hasSeparator := false
	for _, r := range value {
		if r >= '0' && r <= '9' {
			hasDigit = true
		} else if r == '-' || r == '/' || r == '.' || r == ':' || r == 'T' || r == ' ' {
			hasSeparator = true
		}
		if hasDigit && hasSeparator {
			break
		}
	}
	if !hasDigit || !hasSeparator {
		return false
	}

	for _, dp := range cachedDatetimePatterns {
		if dp.pattern.MatchString(value) {
			for _, format := range dp.formats {
				if _, err := time.Parse(format, value); err == nil {
					return true
				}
			}
		}
	}

	return false
}

// ParseTimestamp parses a value using the same layout table that IsDatetime
// recognizes. It is the canonical parse rule for Datetime columns: filter
// evaluation uses it on both the cell and the literal side.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	valueLen := len(value)
	if valueLen < minDatetimeLength || valueLen > maxDatetimeLength {
		return time.Time{}, false
	}

	for _, dp := range cachedDatetimePatterns {
		if dp.pattern.MatchString(value) {
			for _, format := range dp.formats {
				if t, err := time.Parse(format, value); err == nil {
					return t, true
				}
			}
		}
	}

	return time.Time{}, false
}
