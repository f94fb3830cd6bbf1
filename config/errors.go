package config

import "errors"

// Sentinel errors for configuration loading and secret resolution.
var (
	// ErrEmptyPath is returned when a file path is empty.
	ErrEmptyPath = errors.New("config: empty path")

	// ErrUnsupportedFormat is returned for formats other than YAML and JSON.
	ErrUnsupportedFormat = errors.New("config: unsupported format")

	// ErrLoadFailed is returned when a file cannot be read.
	ErrLoadFailed = errors.New("config: load failed")

	// ErrParseFailed is returned when content cannot be parsed.
	ErrParseFailed = errors.New("config: parse failed")

	// ErrUnmarshalFailed is returned when a section cannot be decoded.
	ErrUnmarshalFailed = errors.New("config: unmarshal failed")

	// ErrReloadUnsupported is returned by Reload on properties built from
	// bytes.
	ErrReloadUnsupported = errors.New("config: cannot reload properties loaded from bytes")

	// ErrMissingEnv is returned when ${VAR} names an unset variable.
	ErrMissingEnv = errors.New("config: missing required environment variables")

	// ErrUnknownProvider is returned for a secret reference whose provider
	// is not registered.
	ErrUnknownProvider = errors.New("config: secret provider not registered")

	// ErrEmptySecret is returned by a strict resolver when a provider
	// yields an empty value.
	ErrEmptySecret = errors.New("config: secret provider returned empty value")

	// ErrSecretNotFound is returned by providers that have no value for a
	// reference.
	ErrSecretNotFound = errors.New("config: secret not found")
)
