package backend

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config is the flat key/value configuration handed to a backend factory.
type Config map[string]string

// String returns the value for key, or def when unset or empty.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool parses true/false, 1/0 and yes/no, case-insensitively.
func (c Config) Bool(backend, key string, def bool) (bool, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, NewConfigErrorWithValue(backend, key, v, "must be a boolean (true/false, 1/0, yes/no)")
}

// Int parses a base-10 integer.
func (c Config) Int(backend, key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Backend: backend, Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// PositiveInt is Int that also rejects zero and negative values.
func (c Config) PositiveInt(backend, key string, def int) (int, error) {
	i, err := c.Int(backend, key, def)
	if err != nil {
		return 0, err
	}
	if i <= 0 {
		return 0, NewConfigErrorWithValue(backend, key, c[key], "must be positive")
	}
	return i, nil
}

// Duration accepts Go duration strings ("5s", "1m30s") or plain integer seconds.
func (c Config) Duration(backend, key string, def time.Duration) (time.Duration, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, NewConfigErrorWithValue(backend, key, v, "must be a duration (e.g., '5s', '1m30s') or integer seconds")
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier returns a table, index or collection name. Names are spliced
// into DDL, so only letters, digits and underscores are accepted.
func (c Config) Identifier(backend, key, def string) (string, error) {
	v := c.String(key, def)
	if !identRe.MatchString(v) {
		return "", NewConfigErrorWithValue(backend, key, v, "must contain only letters, digits and underscores")
	}
	return v, nil
}

// Merge returns a new Config with src layered over c.
func (c Config) Merge(src map[string]string) Config {
	out := make(Config, len(c)+len(src))
	maps.Copy(out, c)
	for k, v := range src {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return filepath.Clean(path)
}

// ConfigError describes an invalid or unusable backend setting.
type ConfigError struct {
	Backend string
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %s", e.Backend, msg)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Field, msg)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", e.Backend, e.Field, e.Value, msg)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a ConfigError for a field validation failure.
func NewConfigError(backend, field, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message}
}

// NewConfigErrorWithValue creates a ConfigError that includes the rejected value.
func NewConfigErrorWithValue(backend, field, value, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Value: value, Message: message}
}

// NewConfigErrorWithCause creates a ConfigError wrapping an underlying error,
// typically a failed connection attempt.
func NewConfigErrorWithCause(backend, field, message string, cause error) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message, Cause: cause}
}
