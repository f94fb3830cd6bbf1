package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/notifyops/message"
	"github.com/jonwraymond/notifyops/observe"
)

// SendFunc delivers one message.
type SendFunc func(ctx context.Context, msg message.Message) (message.Receipt, error)

// Deduplicator suppresses repeated sends of the same message.
//
// Contract:
//   - A message whose key has a stored receipt is not sent again; the stored
//     receipt is returned.
//   - Concurrent sends of the same key share one delivery.
//   - Failed sends are not remembered.
type Deduplicator struct {
	cache  Cache
	keyer  Keyer
	policy Policy
	logger observe.Logger
	group  singleflight.Group
}

// DedupOption configures a Deduplicator.
type DedupOption func(*Deduplicator)

// WithLogger sets the logger reporting suppressed duplicates.
func WithLogger(l observe.Logger) DedupOption {
	return func(d *Deduplicator) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithKeyer sets how messages are keyed. Default: IDKeyer.
func WithKeyer(k Keyer) DedupOption {
	return func(d *Deduplicator) {
		if k != nil {
			d.keyer = k
		}
	}
}

// NewDeduplicator creates a Deduplicator storing receipts in c.
func NewDeduplicator(c Cache, policy Policy, opts ...DedupOption) (*Deduplicator, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	d := &Deduplicator{
		cache:  c,
		keyer:  IDKeyer{},
		policy: policy,
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Send delivers msg through send unless it is a duplicate. When the key
// cannot be derived msg is sent without deduplication.
func (d *Deduplicator) Send(ctx context.Context, msg message.Message, send SendFunc) (message.Receipt, error) {
	if !d.policy.ShouldCache() {
		return send(ctx, msg)
	}

	key, err := d.keyer.Key(msg)
	if err != nil {
		d.logger.Debug(ctx, "deduplication skipped", observe.F("error", err))
		return send(ctx, msg)
	}

	if receipt, ok := d.cache.Get(ctx, key); ok {
		d.logger.Info(ctx, "duplicate message suppressed",
			observe.F("key", key),
			observe.F("message_id", receipt.MessageID),
		)
		return receipt, nil
	}

	v, err, shared := d.group.Do(key, func() (any, error) {
		if receipt, ok := d.cache.Get(ctx, key); ok {
			return receipt, nil
		}
		receipt, err := send(ctx, msg)
		if err != nil {
			return message.Receipt{}, err
		}
		if err := d.cache.Set(ctx, key, receipt, d.policy.EffectiveTTL(0)); err != nil {
			d.logger.Warn(ctx, "receipt not stored", observe.F("key", key), observe.F("error", err))
		}
		return receipt, nil
	})
	if shared {
		d.logger.Debug(ctx, "concurrent duplicate joined", observe.F("key", key))
	}
	if err != nil {
		return message.Receipt{}, err
	}
	return v.(message.Receipt), nil
}

// Forget removes the stored receipt of msg, so it can be sent again.
func (d *Deduplicator) Forget(ctx context.Context, msg message.Message) error {
	key, err := d.keyer.Key(msg)
	if err != nil {
		return err
	}
	return d.cache.Delete(ctx, key)
}
