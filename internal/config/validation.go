package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/pitwall/internal/feature"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("missingpolicy", validateMissingPolicy)
	_ = v.RegisterValidation("cron", validateCron)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

// ValidateNormalization validates only the normalization section, for commands
// that do not touch the database or the tracker
func ValidateNormalization(cfg NormalizationConfig) error {
	if err := NewValidator().validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateMissingPolicy(fl validator.FieldLevel) bool {
	_, err := feature.ParseMissingPolicy(fl.Field().String())
	return err == nil
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	d := cfg.Driver
	if d.TrainMaxYear >= d.TestMinYear {
		return fmt.Errorf("driver train_max_year (%d) must be before test_min_year (%d)", d.TrainMaxYear, d.TestMinYear)
	}
	if d.TestMinYear > d.TestMaxYear {
		return fmt.Errorf("driver test_min_year (%d) cannot exceed test_max_year (%d)", d.TestMinYear, d.TestMaxYear)
	}
	if d.SecondPlaceLow > d.SecondPlaceHigh {
		return fmt.Errorf("driver second_place_low cannot exceed second_place_high")
	}

	if cfg.Constructor.Label == "" || contains(cfg.Constructor.InputColumns, cfg.Constructor.Label) {
		return fmt.Errorf("constructor label %q must not be an input column", cfg.Constructor.Label)
	}
	if contains(cfg.Constructor.NormalizeColumns, cfg.Normalization.PartitionKey) {
		return fmt.Errorf("partition key %q cannot be normalized", cfg.Normalization.PartitionKey)
	}

	if cfg.IsProduction() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.Schedule.Enabled && cfg.Schedule.ConstructorCron == "" && cfg.Schedule.DriverCron == "" {
		return fmt.Errorf("schedule enabled but no cron expression configured")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "missingpolicy":
			fmt.Fprintf(&b, "- Field '%s' must be one of: skip, fail\n", field)
		case "cron":
			fmt.Fprintf(&b, "- Field '%s' is not a valid cron expression: '%v'\n", field, value)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
