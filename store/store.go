package store

import (
	"context"
	"errors"
	"log/slog"
)

// Well-known keys. KeyAuthToken lives in the secure store; the identifier
// keys are non-secret bookkeeping and may live in a lighter backend.
const (
	KeyAuthToken = "auth_token"
	KeyUserID    = "user_id"
	KeyDeviceID  = "device_id"
	KeyPushToken = "push_token"
)

// ErrBackend wraps backend transport failures so callers can distinguish an
// unavailable store from an absent key.
var ErrBackend = errors.New("credential store backend unavailable")

// Store is a scoped key/value credential store. Implementations must make
// completed writes fully observable: a Get after a successful Set returns the
// written value, and no partial value is ever visible.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Migrate copies the named keys from a legacy store into dst and deletes the
// legacy copies. Every failure is logged and skipped rather than propagated:
// a failed migration leaves the legacy value in place for the next attempt,
// and must never prevent the client from initializing. Callers are expected
// to invoke Migrate at most once per process.
func Migrate(ctx context.Context, logger *slog.Logger, legacy, dst Store, keys ...string) {
	if legacy == nil || dst == nil {
		return
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for _, key := range keys {
		value, ok, err := legacy.Get(ctx, key)
		if err != nil {
			logger.Warn("credential migration read failed", "key", key, "error", err)
			continue
		}
		if !ok || value == "" {
			continue
		}
		if err := dst.Set(ctx, key, value); err != nil {
			logger.Warn("credential migration write failed", "key", key, "error", err)
			continue
		}
		if err := legacy.Delete(ctx, key); err != nil {
			// Copy succeeded; the stale legacy value is shadowed, not authoritative.
			logger.Warn("credential migration cleanup failed", "key", key, "error", err)
		}
	}
}
