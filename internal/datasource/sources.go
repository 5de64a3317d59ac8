package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	fileSourceName = "file"
	httpSourceName = "http"
	s3SourceName   = "s3"
)

// FileSource reads datasets from the local filesystem
type FileSource struct{}

// Name returns the source name
func (FileSource) Name() string { return fileSourceName }

// Open opens a plain path or a file:// URI
func (FileSource) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewLoadError(fileSourceName, ErrCodeNotFound, path, ErrNotFound)
		}
		return nil, NewLoadError(fileSourceName, ErrCodeNetworkError, "open "+path, err)
	}
	return f, nil
}

// HTTPSource reads datasets over HTTP(S) through the rate-limited client
type HTTPSource struct {
	client *RateLimitedHTTPClient
}

// NewHTTPSource creates an HTTP source
func NewHTTPSource(client *RateLimitedHTTPClient) *HTTPSource {
	return &HTTPSource{client: client}
}

// Name returns the source name
func (s *HTTPSource) Name() string { return httpSourceName }

// Open issues a GET for uri and returns the response body
func (s *HTTPSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, uri)
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, NewLoadError(httpSourceName, ErrCodeServerError, "circuit open for "+uri, err)
		}
		return nil, NewLoadError(httpSourceName, ErrCodeNetworkError, "get "+uri, err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	msg := fmt.Sprintf("get %s: status %d", uri, resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewLoadError(httpSourceName, ErrCodeNotFound, msg, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewLoadError(httpSourceName, ErrCodeAuthenticationFailed, msg, ErrAuthenticationFailed)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewLoadError(httpSourceName, ErrCodeRateLimitExceeded, msg, ErrRateLimitExceeded)
	case resp.StatusCode >= 500:
		return nil, NewLoadError(httpSourceName, ErrCodeServerError, msg, ErrServerError)
	default:
		return nil, NewLoadError(httpSourceName, ErrCodeInvalidData, msg, ErrInvalidData)
	}
}

// ObjectGetter is the subset of the S3 API used to read datasets
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads datasets from s3://bucket/key URIs
type S3Source struct {
	client ObjectGetter
}

// S3Config configures the S3 client
type S3Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// NewS3Source creates an S3 source around an existing client
func NewS3Source(client ObjectGetter) *S3Source {
	return &S3Source{client: client}
}

// NewS3SourceFromConfig builds an S3 client from the default AWS credential chain
func NewS3SourceFromConfig(ctx context.Context, cfg S3Config) (*S3Source, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3Source(client), nil
}

// Name returns the source name
func (s *S3Source) Name() string { return s3SourceName }

// Open fetches the object named by an s3://bucket/key URI
func (s *S3Source) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, NewLoadError(s3SourceName, ErrCodeInvalidData, uri, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		var nsb *s3types.NoSuchBucket
		if errors.As(err, &nsk) || errors.As(err, &nsb) {
			return nil, NewLoadError(s3SourceName, ErrCodeNotFound, uri, ErrNotFound)
		}
		return nil, NewLoadError(s3SourceName, ErrCodeNetworkError, "get "+uri, err)
	}
	return out.Body, nil
}

// ParseS3URI splits s3://bucket/key into bucket and key
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs a bucket and a key: %s", uri)
	}
	return u.Host, key, nil
}
