package config

import (
	"os"
	"testing"
	"time"

	"github.com/ledgerline/backoffice/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	got := getEnvDuration("TEST_DURATION", 10*time.Second)
	if got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}

	got = getEnvDuration("TEST_DURATION_NOT_SET", 10*time.Second)
	if got != 10*time.Second {
		t.Errorf("getEnvDuration() = %v, want default 10s", got)
	}

	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")

	got = getEnvDuration("TEST_DURATION_BAD", 10*time.Second)
	if got != 10*time.Second {
		t.Errorf("getEnvDuration() = %v, want default on parse failure", got)
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"DEBUG", observability.DebugLevel},
		{"unknown", observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Server: ServerConfig{
				Port:       "8080",
				HealthPort: "9090",
			},
		}
		cfg.Storage.PostgresURL = "postgres://localhost:5432/backoffice"
		cfg.Storage.RedisURL = "redis://localhost:6379/0"
		cfg.Storage.CacheEnabled = true
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("missing postgres URL fails", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.PostgresURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("same server and health port fails", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("cache enabled without redis fails", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.RedisURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("cache disabled without redis passes", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.RedisURL = ""
		cfg.Storage.CacheEnabled = false
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("otel enabled requires endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})
}
