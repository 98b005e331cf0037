package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/medicore/medicore/internal/platform/kv"
)

// RevocationList tracks denylisted token JTIs until their natural
// expiry.
type RevocationList interface {
	// Revoke records the JTI for ttl. After ttl the token is expired
	// anyway, so the entry is allowed to vanish.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether a live revocation entry exists for the
	// JTI.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// StoreRevocationList keeps revocation entries in the shared KV store,
// so a revocation written by one server instance rejects the token on
// every instance as soon as the write returns.
type StoreRevocationList struct {
	store kv.Store
}

// NewStoreRevocationList creates a revocation list backed by the given
// store.
func NewStoreRevocationList(store kv.Store) *StoreRevocationList {
	return &StoreRevocationList{store: store}
}

func revocationKey(jti string) string {
	return "revoked:" + jti
}

func (l *StoreRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := l.store.SetWithTTL(ctx, revocationKey(jti), "1", ttl); err != nil {
		return fmt.Errorf("failed to write revocation entry: %w", err)
	}
	return nil
}

func (l *StoreRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return l.store.Exists(ctx, revocationKey(jti))
}
