package repository

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	PredictionTables PredictionTableRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB, log *logrus.Logger) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		PredictionTables: NewPostgresPredictionTableRepository(db, log),
	}, nil
}
