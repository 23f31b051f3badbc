package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "single URL",
			input: "postgres://replica1:5432/backoffice",
			want:  []string{"postgres://replica1:5432/backoffice"},
		},
		{
			name:  "multiple URLs with whitespace",
			input: "postgres://replica1:5432/db, postgres://replica2:5432/db ,postgres://replica3:5432/db",
			want: []string{
				"postgres://replica1:5432/db",
				"postgres://replica2:5432/db",
				"postgres://replica3:5432/db",
			},
		},
		{
			name:  "trailing comma",
			input: "postgres://replica1:5432/db,",
			want:  []string{"postgres://replica1:5432/db"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReplicaURLs(tt.input))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.PostgresMaxConns)
	assert.Equal(t, 2, cfg.PostgresMinConns)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 4096, cfg.L1CacheSize)
	assert.NotEmpty(t, cfg.S3Bucket)
}
