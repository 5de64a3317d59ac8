// Package config provides configuration management for the pitwall pipelines.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	Tracking      TrackingConfig      `mapstructure:"tracking" validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage" validate:"required"`
	Normalization NormalizationConfig `mapstructure:"normalization" validate:"required"`
	Constructor   ConstructorConfig   `mapstructure:"constructor" validate:"required"`
	Driver        DriverConfig        `mapstructure:"driver" validate:"required"`
	Metrics       MetricsConfig       `mapstructure:"metrics" validate:"required"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	AWSRegion   string `mapstructure:"aws_region"`
	SecretName  string `mapstructure:"secret_name"`
}

// DatabaseConfig represents the PostgreSQL connection holding prediction tables
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// TrackingConfig represents the experiment tracker store
type TrackingConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN          string `mapstructure:"dsn" validate:"required"`
	ArtifactRoot string `mapstructure:"artifact_root" validate:"required"`
}

// StorageConfig represents dataset loading
type StorageConfig struct {
	Region             string  `mapstructure:"region"`
	Endpoint           string  `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle       bool    `mapstructure:"use_path_style"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	HTTPTimeoutSeconds int     `mapstructure:"http_timeout_seconds" validate:"required,gt=0"`
	MaxRetries         int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit          float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// NormalizationConfig represents defaults for partitioned min-max scaling
type NormalizationConfig struct {
	PartitionKey  string `mapstructure:"partition_key" validate:"required"`
	MissingPolicy string `mapstructure:"missing_policy" validate:"missingpolicy"`
	Workers       int    `mapstructure:"workers" validate:"gte=0"`
}

// ConstructorConfig represents the constructor championship classifier
type ConstructorConfig struct {
	Experiment       string    `mapstructure:"experiment" validate:"required"`
	FeaturesURI      string    `mapstructure:"features_uri" validate:"required"`
	NormalizeColumns []string  `mapstructure:"normalize_columns" validate:"required,min=1"`
	FillColumns      []string  `mapstructure:"fill_columns"`
	InputColumns     []string  `mapstructure:"input_columns" validate:"required,min=1"`
	Label            string    `mapstructure:"label" validate:"required"`
	OutputTable      string    `mapstructure:"output_table" validate:"required"`
	OutputColumns    []string  `mapstructure:"output_columns"`
	NumFolds         int       `mapstructure:"num_folds" validate:"required,gte=2"`
	Seed             int64     `mapstructure:"seed"`
	RegParams        []float64 `mapstructure:"reg_params" validate:"required,min=1,dive,gte=0"`
	ElasticNetParams []float64 `mapstructure:"elastic_net_params" validate:"required,min=1,dive,gte=0,lte=1"`
	MaxIter          int       `mapstructure:"max_iter" validate:"required,gt=0"`
}

// DriverConfig represents the driver race points regressor
type DriverConfig struct {
	Experiment          string   `mapstructure:"experiment" validate:"required"`
	FeaturesURI         string   `mapstructure:"features_uri" validate:"required"`
	DriversURI          string   `mapstructure:"drivers_uri" validate:"required"`
	ConstructorsURI     string   `mapstructure:"constructors_uri" validate:"required"`
	RacesURI            string   `mapstructure:"races_uri" validate:"required"`
	Label               string   `mapstructure:"label" validate:"required"`
	YearColumn          string   `mapstructure:"year_column" validate:"required"`
	DropColumns         []string `mapstructure:"drop_columns"`
	FillColumns         []string `mapstructure:"fill_columns"`
	SentinelColumns     []string `mapstructure:"sentinel_columns"`
	SentinelValue       float64  `mapstructure:"sentinel_value"`
	SentinelReplacement float64  `mapstructure:"sentinel_replacement"`
	TrainMaxYear        int      `mapstructure:"train_max_year" validate:"required"`
	TestMinYear         int      `mapstructure:"test_min_year" validate:"required"`
	TestMaxYear         int      `mapstructure:"test_max_year" validate:"required"`
	NEstimators         int      `mapstructure:"n_estimators" validate:"required,gt=0"`
	MaxDepth            int      `mapstructure:"max_depth" validate:"required,gt=0"`
	MaxFeatures         int      `mapstructure:"max_features" validate:"gte=0"`
	MinSamplesSplit     int      `mapstructure:"min_samples_split" validate:"gte=0"`
	MinSamplesLeaf      int      `mapstructure:"min_samples_leaf" validate:"gte=0"`
	RandomState         int64    `mapstructure:"random_state"`
	OutputTable         string   `mapstructure:"output_table" validate:"required"`
	SecondPlaceLow      float64  `mapstructure:"second_place_low"`
	SecondPlaceHigh     float64  `mapstructure:"second_place_high"`
	SecondPlacePoints   float64  `mapstructure:"second_place_points"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// ScheduleConfig represents retraining schedules
type ScheduleConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ConstructorCron   string `mapstructure:"constructor_cron" validate:"omitempty,cron"`
	DriverCron        string `mapstructure:"driver_cron" validate:"omitempty,cron"`
	JobTimeoutMinutes int    `mapstructure:"job_timeout_minutes" validate:"gte=0"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// CacheTTL returns the dataset cache lifetime
func (s StorageConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// HTTPTimeout returns the dataset download timeout
func (s StorageConfig) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutSeconds) * time.Second
}

// JobTimeout returns the per-run timeout for scheduled jobs
func (s ScheduleConfig) JobTimeout() time.Duration {
	if s.JobTimeoutMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.JobTimeoutMinutes) * time.Minute
}
