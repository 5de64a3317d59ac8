package feature

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnNotFound indicates a referenced column does not exist
	ErrColumnNotFound = errors.New("column not found")

	// ErrNonNumericColumn indicates a numeric operation was applied to a text column
	ErrNonNumericColumn = errors.New("column is not numeric")

	// ErrMissingPartitionKey indicates a row has no partition key value
	ErrMissingPartitionKey = errors.New("partition key missing")

	// ErrMissingValue indicates a missing feature value where none is allowed
	ErrMissingValue = errors.New("missing value")

	// ErrEmptyFrame indicates an operation that requires rows received none
	ErrEmptyFrame = errors.New("frame has no rows")

	// ErrNoFeatures indicates an empty feature list
	ErrNoFeatures = errors.New("no feature columns given")
)

// ColumnError ties a failure to the column that caused it
type ColumnError struct {
	Op     string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: column %q: %v", e.Op, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

func missingAt(op, column string, row int) error {
	return &ColumnError{Op: op, Column: column, Err: fmt.Errorf("row %d: %w", row, ErrMissingValue)}
}
