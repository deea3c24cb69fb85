package config

import (
	"errors"
	"fmt"

	"fileindex/btree"
	"fileindex/logging"
	"fileindex/snapshot"
)

var ErrInvalid = errors.New("invalid configuration")

// ValidationError names the setting that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalid
}

// Validate returns every problem found in c, joined into one error.
func (c Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, ValidationError{Field: "data-dir", Message: "must not be empty"})
	}
	if c.Degree < btree.MinDegree {
		errs = append(errs, ValidationError{
			Field:   "degree",
			Message: fmt.Sprintf("must be at least %d, got %d", btree.MinDegree, c.Degree),
		})
	}
	if c.CacheSize < 0 {
		errs = append(errs, ValidationError{Field: "cache-size", Message: "must not be negative"})
	}
	if _, err := snapshot.ParseCodec(c.Compression); err != nil {
		errs = append(errs, ValidationError{Field: "compression", Message: err.Error()})
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log-level", Message: err.Error()})
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		errs = append(errs, ValidationError{Field: "log-format", Message: fmt.Sprintf("unknown format %q", c.LogFormat)})
	}

	return errors.Join(errs...)
}

// Codec returns the parsed snapshot codec. Call Validate first.
func (c Config) Codec() snapshot.Codec {
	codec, _ := snapshot.ParseCodec(c.Compression)
	return codec
}
