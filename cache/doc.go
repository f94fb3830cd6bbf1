// Package cache remembers delivery receipts so a message sent twice is
// delivered once.
//
// A Keyer derives a key from a message (its ID by default, or a hash of its
// content), a Cache stores receipts under those keys until a Policy TTL
// expires, and a Deduplicator puts the two in front of a send.
package cache
