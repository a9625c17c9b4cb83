package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"STORAGE_BACKEND", "INPUT_BUCKET", "OUTPUT_BUCKET", "LOCAL_STORAGE_ROOT", "OUTPUT_PREFIX",
		"DATABASE_URL", "SINK_POSTGRES", "NUM_FILE_WORKERS", "MAX_INPUT_BYTES", "AMQP_URL",
		"QUEUE_NAME", "API_PORT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := New()

		require.NoError(t, err)
		assert.Equal(t, StorageLocal, cfg.StorageBackend)
		assert.Equal(t, ".", cfg.LocalStorageRoot)
		assert.Equal(t, "processed/", cfg.OutputPrefix)
		assert.Equal(t, 4, cfg.NumFileWorkers)
		assert.Equal(t, int64(0), cfg.MaxInputBytes)
		assert.False(t, cfg.SinkPostgres)
		assert.Equal(t, "8080", cfg.APIPort)
		assert.Equal(t, "INFO", cfg.LogLevel)
	})

	t.Run("s3 backend reads buckets", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_BACKEND", "S3")
		t.Setenv("INPUT_BUCKET", "raw-bucket")
		t.Setenv("OUTPUT_BUCKET", "clean-bucket")
		t.Setenv("NUM_FILE_WORKERS", "2")
		t.Setenv("MAX_INPUT_BYTES", "1048576")

		cfg, err := New()

		require.NoError(t, err)
		assert.Equal(t, StorageS3, cfg.StorageBackend)
		assert.Equal(t, "raw-bucket", cfg.InputBucket)
		assert.Equal(t, "clean-bucket", cfg.OutputBucket)
		assert.Equal(t, 2, cfg.NumFileWorkers)
		assert.Equal(t, int64(1048576), cfg.MaxInputBytes)
	})

	t.Run("s3 backend without buckets", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_BACKEND", "s3")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_BACKEND", "ftp")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("invalid integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("NUM_FILE_WORKERS", "many")

		_, err := New()

		assert.EqualError(t, err, "invalid value for NUM_FILE_WORKERS: expected an integer, got 'many'")
	})

	t.Run("non positive workers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("NUM_FILE_WORKERS", "0")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("postgres sink requires a database", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SINK_POSTGRES", "true")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("invalid boolean", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SINK_POSTGRES", "maybe")

		_, err := New()

		assert.Error(t, err)
	})
}
