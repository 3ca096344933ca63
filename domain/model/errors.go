// Package model provides domain model for tablens
package model

import "errors"

var (
	// ErrDuplicateColumnName is returned when a schema or rename would contain duplicate column names
	ErrDuplicateColumnName = errors.New("duplicate column name")

	// ErrUnknownColumn is returned when an action or filter names a column that does not exist
	ErrUnknownColumn = errors.New("unknown column")

	// ErrOperatorMismatch is returned when a relational operator is applied to a non-comparable column type
	ErrOperatorMismatch = errors.New("operator requires an integer, real or datetime column")

	// ErrUnknownOperator is returned when a filter uses an operator outside the defined set
	ErrUnknownOperator = errors.New("unknown filter operator")

	// ErrInvalidCastType is returned when a cast action targets a type columns cannot take
	ErrInvalidCastType = errors.New("invalid cast target type")

	// ErrUnknownAction is returned when an action stack contains an unrecognized action variant
	ErrUnknownAction = errors.New("unknown action")
)
