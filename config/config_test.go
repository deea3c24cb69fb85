package config

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileindex/snapshot"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, snapshot.CodecZstd, cfg.Codec())
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := Config{
		DataDir:     "",
		Degree:      1,
		CacheSize:   -5,
		Compression: "lz4",
		LogLevel:    "loud",
		LogFormat:   "xml",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	for _, field := range []string{"data-dir", "degree", "cache-size", "compression", "log-level", "log-format"} {
		assert.Contains(t, err.Error(), field+":")
	}

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "data-dir", verr.Field)
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--data-dir", "/tmp/idx", "--degree", "5", "--compression", "snappy", "--cache-size", "0"}))

	assert.Equal(t, "/tmp/idx", cfg.DataDir)
	assert.Equal(t, 5, cfg.Degree)
	assert.Equal(t, snapshot.CodecSnappy, cfg.Codec())
	assert.Equal(t, int64(0), cfg.CacheSize)
	assert.Equal(t, ":3000", cfg.ListenAddr)
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"FILEINDEX_DATA_DIR":   "/srv/index",
		"FILEINDEX_DEGREE":     "4",
		"FILEINDEX_CACHE_SIZE": "128",
		"FILEINDEX_LOG_FORMAT": "json",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.fromLookup(lookup))
	assert.Equal(t, "/srv/index", cfg.DataDir)
	assert.Equal(t, 4, cfg.Degree)
	assert.Equal(t, int64(128), cfg.CacheSize)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "zstd", cfg.Compression)

	env["FILEINDEX_DEGREE"] = "three"
	err := cfg.fromLookup(lookup)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFromEnvProcess(t *testing.T) {
	t.Setenv("FILEINDEX_ADDR", ":9999")

	cfg := Default()
	require.NoError(t, cfg.FromEnv())
	assert.Equal(t, ":9999", cfg.ListenAddr)
}
