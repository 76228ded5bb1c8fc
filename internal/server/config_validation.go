// config_validation.go - Startup configuration validation for Evidence Drop.
//
// Validates environment variables at startup to fail fast with clear
// error messages rather than runtime failures.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator validates application configuration.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidateRequired validates that a required environment variable is set.
func (v *ConfigValidator) ValidateRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
	return value
}

// ValidatePort validates that a value is a valid port number.
func (v *ConfigValidator) ValidatePort(key, value string) {
	if value == "" {
		return
	}

	// Handle ":port" format
	portStr := strings.TrimPrefix(value, ":")

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidateMinLength validates minimum string length.
func (v *ConfigValidator) ValidateMinLength(key, value string, minLen int) {
	if value == "" {
		return
	}

	if len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters long (got %d)", minLen, len(value)))
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if value == "" {
		return
	}

	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidatePositiveInt validates that a value is a positive integer.
func (v *ConfigValidator) ValidatePositiveInt(key, value string) {
	if value == "" {
		return
	}

	num, err := strconv.Atoi(value)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}

	if num <= 0 {
		v.AddError(key, "must be a positive integer")
	}
}

// ValidateAllConfiguration performs comprehensive validation of all
// configuration. Absence of any required value is fatal at startup.
func ValidateAllConfiguration() error {
	v := NewConfigValidator()

	// Required core configuration
	v.ValidateRequired("EVD_AUTH_USER")
	v.ValidateRequired("EVD_AUTH_PASS")
	v.ValidateRequired("EVD_COOKIE_SECRET")

	// Cookie secret must carry enough entropy to sign tokens
	v.ValidateMinLength("EVD_COOKIE_SECRET", os.Getenv("EVD_COOKIE_SECRET"), 32)

	// Optional but validated if present
	if addr := os.Getenv("EVD_ADDR"); addr != "" {
		v.ValidatePort("EVD_ADDR", addr)
	}

	if ttl := os.Getenv("EVD_SESSION_TTL_MIN"); ttl != "" {
		v.ValidatePositiveInt("EVD_SESSION_TTL_MIN", ttl)
	}

	if maxUpload := os.Getenv("EVD_MAX_UPLOAD_BYTES"); maxUpload != "" {
		v.ValidatePositiveInt("EVD_MAX_UPLOAD_BYTES", maxUpload)
	}

	// Archive settings are all-or-nothing
	archiveKeys := []string{"EVD_S3_ENDPOINT", "EVD_S3_ACCESS_KEY", "EVD_S3_SECRET_KEY", "EVD_BUCKET"}
	set := 0
	for _, key := range archiveKeys {
		if os.Getenv(key) != "" {
			set++
		}
	}
	if set > 0 && set < len(archiveKeys) {
		for _, key := range archiveKeys {
			if os.Getenv(key) == "" {
				v.AddError(key, "must be set when any EVD_S3_*/EVD_BUCKET setting is present")
			}
		}
	}

	// Log configuration
	v.ValidateEnum("EVD_LOG_FORMAT", os.Getenv("EVD_LOG_FORMAT"), []string{"", "json", "text"})
	v.ValidateEnum("EVD_LOG_LEVEL", os.Getenv("EVD_LOG_LEVEL"), []string{"", "debug", "info", "warn", "error"})
	v.ValidateEnum("EVD_ENV", os.Getenv("EVD_ENV"), []string{"", "development", "production", "staging"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}

	return nil
}

// WarnOnOptionalMissingConfig logs warnings for optional but recommended config.
func WarnOnOptionalMissingConfig() {
	warnings := make([]string, 0)

	if os.Getenv("EVD_S3_ENDPOINT") == "" {
		warnings = append(warnings, "EVD_S3_ENDPOINT not set - evidence archiving disabled")
	}

	if os.Getenv("EVD_MAX_UPLOAD_BYTES") == "" {
		warnings = append(warnings, "EVD_MAX_UPLOAD_BYTES not set - uploads are unbounded")
	}

	if os.Getenv("EVD_LOG_FORMAT") == "" {
		warnings = append(warnings, "EVD_LOG_FORMAT not set - using text format (consider 'json' for production)")
	}

	if len(warnings) > 0 {
		Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
