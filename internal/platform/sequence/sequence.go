// Package sequence issues human-readable record numbers backed by the
// shared key-value store. Counters increment in the store itself, so
// numbers stay unique across server instances.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/medicore/medicore/internal/platform/kv"
)

// Generator formats record numbers from store-side counters.
type Generator struct {
	store kv.Store
	now   func() time.Time
}

// New creates a generator over the given store.
func New(store kv.Store) *Generator {
	return &Generator{store: store, now: time.Now}
}

// Daily returns the next number in a per-day series, formatted
// PREFIX-YYYYMMDD-NNNN. Each UTC day starts a fresh counter at 0001
// under seq:{key}:{YYYYMMDD}.
func (g *Generator) Daily(ctx context.Context, key, prefix string) (string, error) {
	day := g.now().UTC().Format("20060102")
	n, err := g.store.Incr(ctx, "seq:"+key+":"+day)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", key, err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, day, n), nil
}

// Counter returns the next number in a monotonic series, formatted
// PREFIX-NNNNNN, counting under seq:{key}.
func (g *Generator) Counter(ctx context.Context, key, prefix string) (string, error) {
	n, err := g.store.Incr(ctx, "seq:"+key)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", key, err)
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}
