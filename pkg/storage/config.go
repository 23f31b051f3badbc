// Package storage manages database, cache, and object store connections.
package storage

import "time"

// Config holds connection settings for the backing stores
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// S3 config (export delivery)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Grant cache config
	CacheEnabled bool
	CacheTTL     time.Duration
	L1CacheSize  int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		S3Region:         "us-east-1",
		S3Bucket:         "backoffice-exports",
		CacheEnabled:     true,
		CacheTTL:         30 * time.Second,
		L1CacheSize:      4096,
	}
}
