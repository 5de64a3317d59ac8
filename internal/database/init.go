package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/config"
)

// Initialize creates the connection pool and logs the server version
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	var version string
	if err := db.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"host":           cfg.Database.Host,
			"database":       cfg.Database.Name,
			"server_version": version,
		}).Info("Connected to PostgreSQL")
	}
	return db, nil
}
