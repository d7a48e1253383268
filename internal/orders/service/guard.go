package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionGuard serializes order submissions per buyer. The holder is the
// correlation id of the attempt; only the holder can release.
type SubmissionGuard interface {
	Acquire(ctx context.Context, buyerID, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, buyerID, holder string) error
}

type heldGuard struct {
	holder  string
	expires time.Time
}

type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]heldGuard
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]heldGuard), now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, buyerID, holder string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if h, ok := g.held[buyerID]; ok && now.Before(h.expires) {
		return false, nil
	}
	g.held[buyerID] = heldGuard{holder: holder, expires: now.Add(ttl)}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, buyerID, holder string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.held[buyerID]; ok && h.holder == holder {
		delete(g.held, buyerID)
	}
	return nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares the guard between storefront instances.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, buyerID, holder string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(buyerID), holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire submission guard: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, buyerID, holder string) error {
	if err := releaseScript.Run(ctx, g.client, []string{guardKey(buyerID)}, holder).Err(); err != nil {
		return fmt.Errorf("release submission guard: %w", err)
	}
	return nil
}

func guardKey(buyerID string) string {
	return fmt.Sprintf("checkout:guard:%s", buyerID)
}
