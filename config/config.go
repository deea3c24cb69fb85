// Package config holds the settings shared by the CLI and the HTTP server.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"fileindex/btree"
)

const envPrefix = "FILEINDEX_"

// Config is the full runtime configuration.
type Config struct {
	DataDir     string
	Degree      int
	CacheSize   int64
	Compression string
	ListenAddr  string
	LogLevel    string
	LogFormat   string
}

// Default returns a Config with the stock settings.
func Default() Config {
	return Config{
		DataDir:     "./files",
		Degree:      btree.DefaultDegree,
		CacheSize:   4096,
		Compression: "zstd",
		ListenAddr:  ":3000",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// BindFlags registers one flag per setting on fs, defaulting to the
// current values of c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding the databases")
	fs.IntVar(&c.Degree, "degree", c.Degree, "default B-tree minimum degree for new indexes")
	fs.Int64Var(&c.CacheSize, "cache-size", c.CacheSize, "lookup cache capacity in entries (0 disables)")
	fs.StringVar(&c.Compression, "compression", c.Compression, "snapshot compression: none, zstd or snappy")
	fs.StringVar(&c.ListenAddr, "addr", c.ListenAddr, "HTTP listen address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
}

// FromEnv overrides settings with FILEINDEX_* environment variables,
// e.g. FILEINDEX_DATA_DIR or FILEINDEX_CACHE_SIZE.
func (c *Config) FromEnv() error {
	return c.fromLookup(os.LookupEnv)
}

func (c *Config) fromLookup(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATA_DIR":    &c.DataDir,
		"COMPRESSION": &c.Compression,
		"ADDR":        &c.ListenAddr,
		"LOG_LEVEL":   &c.LogLevel,
		"LOG_FORMAT":  &c.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "DEGREE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sDEGREE=%q is not an integer", ErrInvalid, envPrefix, v)
		}
		c.Degree = n
	}
	if v, ok := lookup(envPrefix + "CACHE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sCACHE_SIZE=%q is not an integer", ErrInvalid, envPrefix, v)
		}
		c.CacheSize = n
	}
	return nil
}
