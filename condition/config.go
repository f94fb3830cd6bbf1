package condition

import "regexp"

// ConfigSource exposes configuration keys.
//
// Contract:
//   - Has reports presence only; an empty value is still present.
//   - Implementations must be safe for concurrent use.
type ConfigSource interface {
	Has(key string) bool
	Lookup(key string) (string, bool)
}

// MapSource is a ConfigSource over a plain map.
type MapSource map[string]string

// Has implements ConfigSource.
func (m MapSource) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Lookup implements ConfigSource.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// RequiredConfigCondition accepts when a key is present in its source.
type RequiredConfigCondition[S any] struct {
	source ConfigSource
	key    string
}

// RequiredConfig returns a condition that accepts iff key is present in
// source, whatever its value.
func RequiredConfig[S any](source ConfigSource, key string) *RequiredConfigCondition[S] {
	return &RequiredConfigCondition[S]{source: source, key: key}
}

// Accept implements Condition.
func (c *RequiredConfigCondition[S]) Accept(S) bool {
	if c.source == nil || c.key == "" {
		return false
	}
	return c.source.Has(c.key)
}

// Key returns the required configuration key.
func (c *RequiredConfigCondition[S]) Key() string {
	return c.key
}

// RequiredConfigValueCondition accepts when a key has an expected value.
type RequiredConfigValueCondition[S any] struct {
	source ConfigSource
	key    string
	match  func(string) bool
}

// RequiredConfigValue returns a condition that accepts iff key is present in
// source with exactly value.
func RequiredConfigValue[S any](source ConfigSource, key, value string) *RequiredConfigValueCondition[S] {
	return &RequiredConfigValueCondition[S]{
		source: source,
		key:    key,
		match:  func(v string) bool { return v == value },
	}
}

// RequiredConfigPattern returns a condition that accepts iff key is present
// in source and its value matches pattern. A nil pattern never matches.
func RequiredConfigPattern[S any](source ConfigSource, key string, pattern *regexp.Regexp) *RequiredConfigValueCondition[S] {
	return &RequiredConfigValueCondition[S]{
		source: source,
		key:    key,
		match: func(v string) bool {
			return pattern != nil && pattern.MatchString(v)
		},
	}
}

// Accept implements Condition.
func (c *RequiredConfigValueCondition[S]) Accept(S) bool {
	if c.source == nil || c.key == "" {
		return false
	}
	v, ok := c.source.Lookup(c.key)
	if !ok {
		return false
	}
	return c.match(v)
}
