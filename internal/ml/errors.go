// Package ml provides the estimators, cross-validation and evaluation metrics
// used by the training pipelines.
package ml

import "errors"

var (
	// ErrEmptyInput indicates a fit or evaluation on zero rows
	ErrEmptyInput = errors.New("empty input")

	// ErrDimensionMismatch indicates features and labels disagree in length
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNotBinary indicates a label other than 0 or 1 in a classification task
	ErrNotBinary = errors.New("labels must be 0 or 1")

	// ErrNotFitted indicates prediction with an unfitted model
	ErrNotFitted = errors.New("model is not fitted")

	// ErrNoCandidates indicates a cross-validation run with an empty grid
	ErrNoCandidates = errors.New("no candidate estimators")

	// ErrTooFewRows indicates fewer rows than cross-validation folds
	ErrTooFewRows = errors.New("fewer rows than folds")

	// ErrInvalidParam indicates an out-of-range hyperparameter
	ErrInvalidParam = errors.New("invalid hyperparameter")
)
