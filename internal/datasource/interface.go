// Package datasource loads tabular datasets from local files, HTTP endpoints and
// S3 buckets into feature frames.
package datasource

import (
	"context"
	"errors"
	"io"

	"github.com/yourusername/pitwall/internal/feature"
)

// Source opens the raw bytes behind a dataset URI
type Source interface {
	// Open returns a reader over the object named by uri
	Open(ctx context.Context, uri string) (io.ReadCloser, error)

	// Name returns the name of the source, used in errors and metrics
	Name() string
}

// FrameLoader loads a dataset URI into a frame
type FrameLoader interface {
	Load(ctx context.Context, uri string) (*feature.Frame, error)
}

// LoadError represents errors from dataset loading
type LoadError struct {
	Source  string // Source name
	Code    string // Error code (e.g., "not_found")
	Message string // Error message
	Err     error  // Underlying error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeUnsupportedScheme    = "unsupported_scheme"
)

var (
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("dataset not found")
	ErrInvalidData          = errors.New("invalid data format")
	ErrServerError          = errors.New("server error")
	ErrUnsupportedScheme    = errors.New("unsupported uri scheme")
	ErrCircuitOpen          = errors.New("circuit breaker open")
)

// NewLoadError creates a new load error
func NewLoadError(source, code, message string, err error) *LoadError {
	return &LoadError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsNotFound reports whether err is a load error for a missing dataset
func IsNotFound(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == ErrCodeNotFound
}
