package datasource

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/config"
)

// Scheme names a URI scheme a loader can serve
type Scheme string

const (
	// FileScheme serves local paths and file:// URIs
	FileScheme Scheme = "file"
	// HTTPScheme serves http:// and https:// URIs
	HTTPScheme Scheme = "http"
	// S3Scheme serves s3://bucket/key URIs
	S3Scheme Scheme = "s3"
)

// Factory creates sources and loaders from storage configuration
type Factory struct {
	logger *logrus.Logger
	config config.StorageConfig
}

// NewFactory creates a new data source factory
func NewFactory(cfg config.StorageConfig, logger *logrus.Logger) *Factory {
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// HTTPClientConfig derives the retrying client settings from storage configuration
func (f *Factory) HTTPClientConfig() HTTPClientConfig {
	cfg := DefaultHTTPClientConfig()
	if f.config.HTTPTimeoutSeconds > 0 {
		cfg.Timeout = f.config.HTTPTimeout()
	}
	cfg.MaxRetries = f.config.MaxRetries
	cfg.RateLimit = f.config.RateLimit
	return cfg
}

// Create creates the source serving the given scheme
func (f *Factory) Create(ctx context.Context, scheme Scheme) (Source, error) {
	switch scheme {
	case FileScheme:
		return FileSource{}, nil
	case HTTPScheme:
		return NewHTTPSource(NewRateLimitedHTTPClient(f.HTTPClientConfig(), f.logger)), nil
	case S3Scheme:
		return NewS3SourceFromConfig(ctx, S3Config{
			Region:       f.config.Region,
			Endpoint:     f.config.Endpoint,
			UsePathStyle: f.config.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// ListAvailableSources returns the schemes NewLoader registers
func (f *Factory) ListAvailableSources() []Scheme {
	return []Scheme{FileScheme, HTTPScheme, S3Scheme}
}

// NewLoader creates a caching loader with every available source registered
func (f *Factory) NewLoader(ctx context.Context) (*Loader, error) {
	loader := NewLoader(LoaderConfig{
		CacheTTL: f.config.CacheTTL(),
	}, f.logger)

	for _, scheme := range f.ListAvailableSources() {
		src, err := f.Create(ctx, scheme)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s source: %w", scheme, err)
		}
		loader.Register(string(scheme), src)
	}
	if f.logger != nil {
		f.logger.WithField("schemes", f.ListAvailableSources()).Debug("Dataset loader ready")
	}
	return loader, nil
}
