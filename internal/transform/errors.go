package transform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumn is matched by every precondition failure.
	ErrMissingColumn = errors.New("required column missing")
	// ErrNullsRemain is matched by post-condition validation failures.
	ErrNullsRemain = errors.New("nulls remain")
	// ErrColumnType reports a column of the wrong kind for a stage.
	ErrColumnType = errors.New("unexpected column type")

	ErrInvalidSpan = errors.New("invalid EMA span")
	ErrNoData      = errors.New("no input table")
)

// ColumnError is a precondition violation: a stage needed a column the
// table does not have.
type ColumnError struct {
	Stage  string
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: column '%s' not found in table", e.Stage, e.Column)
}

func (e *ColumnError) Unwrap() error { return ErrMissingColumn }

// NullCount is the number of null cells found in one column.
type NullCount struct {
	Column string
	Count  int
}

// NullsError lists the columns that still contain nulls, in table order.
type NullsError struct {
	Columns []NullCount
}

func (e *NullsError) Error() string {
	parts := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		parts[i] = fmt.Sprintf("%s=%d", c.Column, c.Count)
	}
	return "data contains nulls in columns: " + strings.Join(parts, ", ")
}

func (e *NullsError) Unwrap() error { return ErrNullsRemain }

// Count returns the null count reported for column, or 0.
func (e *NullsError) Count(column string) int {
	for _, c := range e.Columns {
		if c.Column == column {
			return c.Count
		}
	}
	return 0
}
