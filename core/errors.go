package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with an instruction for fixing it.
type ConfigError struct {
	Code    string // stable identifier for programmatic handling
	Message string // what is wrong
	Action  string // how to fix it
	Err     error  // underlying cause, if any
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configuration error codes.
const (
	ErrCodeEnvFileMissing = "ENV_FILE_MISSING"
	ErrCodeInvalidValue   = "INVALID_VALUE"
	ErrCodeInvalidDecoder = "INVALID_DECODER"
	ErrCodeInvalidPort    = "INVALID_PORT"
	ErrCodeInvalidQuality = "INVALID_QUALITY"
	ErrCodeInvalidLevel   = "INVALID_LOG_LEVEL"
	ErrCodeInvalidPreset  = "INVALID_PRESET"
	ErrCodeNoDatabase     = "NO_DATABASE"
)

// ErrEnvFileMissing reports a missing .env file. It is a warning: every
// setting has a default.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env to override defaults",
	}
}

// ErrInvalidValue reports an environment variable that does not parse.
func ErrInvalidValue(name, value, want string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s value %q", name, value),
		Action:  fmt.Sprintf("Set %s to %s", name, want),
	}
}

// ErrInvalidDecoder reports an unknown RAWDEV_DECODER.
func ErrInvalidDecoder(kind string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidDecoder,
		Message: fmt.Sprintf("Unknown decoder %q", kind),
		Action:  "Set RAWDEV_DECODER to libraw or fixture",
	}
}

// ErrInvalidPort reports a port outside 1..65535.
func ErrInvalidPort(port int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidPort,
		Message: fmt.Sprintf("Invalid port %d", port),
		Action:  "Set RAWDEV_PORT to a value between 1 and 65535",
	}
}

// ErrInvalidQuality reports an export quality outside [0, 1].
func ErrInvalidQuality(q float64) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidQuality,
		Message: fmt.Sprintf("Invalid export quality %g", q),
		Action:  "Set RAWDEV_EXPORT_QUALITY to a value between 0 and 1",
	}
}

// ErrInvalidPreset reports a preset file that cannot be loaded.
func ErrInvalidPreset(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidPreset,
		Message: fmt.Sprintf("Cannot load preset %s: %v", path, err),
		Action:  "Fix the YAML file or unset RAWDEV_PRESET",
		Err:     err,
	}
}

// ErrHistoryDisabled reports a history query with no database configured.
func ErrHistoryDisabled() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNoDatabase,
		Message: "Persistent render history is disabled",
		Action:  "Set RAWDEV_DB_PATH to a database file",
	}
}

// IsConfigError returns the *ConfigError in err's chain, if any.
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetErrorCode returns err's ConfigError code, or "".
func GetErrorCode(err error) string {
	if ce, ok := IsConfigError(err); ok {
		return ce.Code
	}
	return ""
}
