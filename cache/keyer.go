package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonwraymond/notifyops/message"
)

// Keyer derives the deduplication key of a message.
//
// Contract:
// - Determinism: equal messages produce equal keys.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(msg message.Message) (string, error)
}

// KeyerFunc adapts a function to a Keyer.
type KeyerFunc func(msg message.Message) (string, error)

// Key calls f(msg).
func (f KeyerFunc) Key(msg message.Message) (string, error) {
	return f(msg)
}

// IDKeyer keys messages by channel and ID, so resending a message with the
// same ID is a duplicate.
type IDKeyer struct{}

// Key returns receipt:<channel>:<id>, assigning an ID first if needed.
func (IDKeyer) Key(msg message.Message) (string, error) {
	key := fmt.Sprintf("receipt:%s:%s", msg.Channel(), msg.EnsureID())
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ContentKeyer keys messages by content, ignoring their IDs, so the same
// notification to the same recipients is a duplicate.
type ContentKeyer struct{}

// Key returns receipt:<channel>:<hash>, where hash is the first 16 hex
// characters of SHA-256 over the canonical JSON of the message without its
// ID.
func (ContentKeyer) Key(msg message.Message) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("cache: encode message: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("cache: decode message: %w", err)
	}
	delete(fields, "ID")

	canonical, err := canonicalize(fields)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize message: %w", err)
	}
	hash := sha256.Sum256(canonical)
	return fmt.Sprintf("receipt:%s:%s", msg.Channel(), hex.EncodeToString(hash[:8])), nil
}

// canonicalize produces JSON with object keys sorted at every level.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}

var (
	_ Keyer = IDKeyer{}
	_ Keyer = ContentKeyer{}
)
