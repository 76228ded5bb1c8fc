package server

import (
	"strings"
	"testing"
)

func setValidBaseConfig(t *testing.T) {
	t.Helper()
	t.Setenv("EVD_AUTH_USER", "said")
	t.Setenv("EVD_AUTH_PASS", "secreto")
	t.Setenv("EVD_COOKIE_SECRET", "0123456789abcdef0123456789abcdef")
	for _, key := range []string{
		"EVD_ADDR", "EVD_SESSION_TTL_MIN", "EVD_MAX_UPLOAD_BYTES",
		"EVD_S3_ENDPOINT", "EVD_S3_ACCESS_KEY", "EVD_S3_SECRET_KEY", "EVD_BUCKET",
		"EVD_LOG_FORMAT", "EVD_LOG_LEVEL", "EVD_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestValidateAllConfigurationHappyPath(t *testing.T) {
	setValidBaseConfig(t)

	if err := ValidateAllConfiguration(); err != nil {
		t.Fatalf("expected valid configuration, got: %v", err)
	}
}

func TestValidateAllConfigurationMissingRequired(t *testing.T) {
	setValidBaseConfig(t)
	t.Setenv("EVD_AUTH_USER", "")
	t.Setenv("EVD_COOKIE_SECRET", "")

	err := ValidateAllConfiguration()
	if err == nil {
		t.Fatalf("expected error for missing required configuration")
	}
	for _, key := range []string{"EVD_AUTH_USER", "EVD_COOKIE_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestValidateAllConfigurationShortSecret(t *testing.T) {
	setValidBaseConfig(t)
	t.Setenv("EVD_COOKIE_SECRET", "too-short")

	err := ValidateAllConfiguration()
	if err == nil || !strings.Contains(err.Error(), "EVD_COOKIE_SECRET") {
		t.Fatalf("expected error for short cookie secret, got: %v", err)
	}
}

func TestValidateAllConfigurationBadOptionalValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "EVD_ADDR", ":notaport"},
		{"port out of range", "EVD_ADDR", ":70000"},
		{"negative ttl", "EVD_SESSION_TTL_MIN", "-5"},
		{"non-numeric upload cap", "EVD_MAX_UPLOAD_BYTES", "huge"},
		{"unknown log format", "EVD_LOG_FORMAT", "xml"},
		{"unknown env", "EVD_ENV", "qa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidBaseConfig(t)
			t.Setenv(tt.key, tt.value)

			err := ValidateAllConfiguration()
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Fatalf("expected error naming %s, got: %v", tt.key, err)
			}
		})
	}
}

func TestValidateAllConfigurationPartialArchive(t *testing.T) {
	setValidBaseConfig(t)
	t.Setenv("EVD_S3_ENDPOINT", "minio:9000")

	err := ValidateAllConfiguration()
	if err == nil {
		t.Fatalf("expected error for partially configured archive")
	}
	if !strings.Contains(err.Error(), "EVD_BUCKET") {
		t.Errorf("error does not name the missing archive keys: %v", err)
	}

	// All four set together is fine.
	t.Setenv("EVD_S3_ACCESS_KEY", "minioadmin")
	t.Setenv("EVD_S3_SECRET_KEY", "minioadmin")
	t.Setenv("EVD_BUCKET", "evidences")
	if err := ValidateAllConfiguration(); err != nil {
		t.Fatalf("fully configured archive must validate: %v", err)
	}
}
