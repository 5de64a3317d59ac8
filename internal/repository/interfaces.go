package repository

import (
	"context"

	"github.com/yourusername/pitwall/internal/feature"
)

// PredictionSink defines the write side of prediction tables
type PredictionSink interface {
	Overwrite(ctx context.Context, table string, f *feature.Frame) error
}

// PredictionSource defines the read side of prediction tables
type PredictionSource interface {
	Load(ctx context.Context, table string, limit int) (*feature.Frame, error)
	Count(ctx context.Context, table string) (int64, error)
}

// PredictionTableRepository defines the interface for prediction table data access
type PredictionTableRepository interface {
	PredictionSink
	PredictionSource
}
