package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/notifyops/message"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores receipts of delivered messages.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns false on a miss or an expired entry.
type Cache interface {
	// Get retrieves a stored receipt.
	Get(ctx context.Context, key string) (message.Receipt, bool)

	// Set stores a receipt for ttl. A ttl of zero or less stores nothing.
	Set(ctx context.Context, key string, receipt message.Receipt, ttl time.Duration) error

	// Delete removes a receipt. Idempotent.
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
