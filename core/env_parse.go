package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvOrDefault returns the trimmed value of key, or def when unset or empty.
func GetEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envReader reads typed environment variables and remembers the first
// malformed one instead of silently falling back to the default.
type envReader struct {
	err *ConfigError
}

func (r *envReader) fail(key, value, want string) {
	if r.err == nil {
		r.err = ErrInvalidValue(key, value, want)
	}
}

func (r *envReader) String(key, def string) string {
	return GetEnvOrDefault(key, def)
}

func (r *envReader) Int(key string, def int) int {
	v := GetEnvOrDefault(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "an integer")
		return def
	}
	return n
}

func (r *envReader) Float(key string, def float64) float64 {
	v := GetEnvOrDefault(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, "a number")
		return def
	}
	return f
}

// Bool accepts true/1/yes/on and false/0/no/off in any case.
func (r *envReader) Bool(key string, def bool) bool {
	v := GetEnvOrDefault(key, "")
	if v == "" {
		return def
	}
	b, ok := ParseBool(v)
	if !ok {
		r.fail(key, v, "true or false")
		return def
	}
	return b
}

// Seconds reads a whole number of seconds.
func (r *envReader) Seconds(key string, def time.Duration) time.Duration {
	n := r.Int(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// ParseBool parses the boolean spellings accepted in configuration.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}
