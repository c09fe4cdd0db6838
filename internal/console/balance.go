package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finetune-console/internal/tasks"

	"golang.org/x/sync/singleflight"
)

const DefaultBalanceTTL = 30 * time.Second

type balanceState int

const (
	balanceIdle balanceState = iota
	balanceLoading
	balanceFailed
)

// BalanceCache holds a snapshot of the account balance. The snapshot is only
// an estimate for admission; the remote API stays authoritative. Concurrent
// refreshes share a single request.
type BalanceCache struct {
	fetch func(ctx context.Context) (float64, error)
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	state     balanceState
	value     *float64
	fetchedAt time.Time
}

func NewBalanceCache(fetch func(ctx context.Context) (float64, error), ttl time.Duration) *BalanceCache {
	return &BalanceCache{fetch: fetch, ttl: ttl, now: time.Now}
}

// Refresh fetches the balance from the remote API. A failed fetch clears the
// snapshot so admission treats the balance as unknown.
func (b *BalanceCache) Refresh(ctx context.Context) (*float64, error) {
	v, err, _ := b.group.Do("balance", func() (any, error) {
		b.mu.Lock()
		b.state = balanceLoading
		b.mu.Unlock()

		balance, err := b.fetch(ctx)

		b.mu.Lock()
		defer b.mu.Unlock()
		if err != nil {
			slog.Warn("unable to load balance", "error", err)
			b.state = balanceFailed
			b.value = nil
			return nil, err
		}
		b.state = balanceIdle
		b.value = &balance
		b.fetchedAt = b.now()
		return balance, nil
	})
	if err != nil {
		return nil, err
	}
	balance := v.(float64)
	return &balance, nil
}

// Get returns the cached balance, refreshing it when stale. It returns nil
// when the balance is unknown.
func (b *BalanceCache) Get(ctx context.Context) *float64 {
	b.mu.Lock()
	if b.value != nil && b.now().Sub(b.fetchedAt) < b.ttl {
		balance := *b.value
		b.mu.Unlock()
		return &balance
	}
	b.mu.Unlock()

	balance, _ := b.Refresh(ctx)
	return balance
}

func (b *BalanceCache) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchedAt = time.Time{}
}

func (b *BalanceCache) Label() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.state == balanceLoading:
		return "Loading..."
	case b.state == balanceFailed:
		return "Unavailable"
	case b.value != nil:
		return tasks.FormatDollars(*b.value)
	default:
		return "Unknown"
	}
}
