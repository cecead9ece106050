package admission

import (
	"sync"

	"golang.org/x/time/rate"
)

const limiterShards = 16

// RateLimiter держит token-bucket на каждого агента. Бакеты шардированы,
// чтобы горячие агенты не конкурировали за один мьютекс.
type RateLimiter struct {
	shards [limiterShards]*limiterShard
	limit  rate.Limit
	burst  int
}

type limiterShard struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter создает лимитер: perSecond — скорость пополнения,
// burst — емкость бакета.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = int(perSecond)
	}
	r := &RateLimiter{limit: rate.Limit(perSecond), burst: burst}
	for i := range r.shards {
		r.shards[i] = &limiterShard{buckets: make(map[string]*rate.Limiter)}
	}
	return r
}

// Allow снимает один токен из бакета агента. Отказ токен НЕ расходует —
// rate.Limiter.Allow() резервирует только при успехе.
func (r *RateLimiter) Allow(agentID string) bool {
	sh := r.shards[shardIndex(agentID, limiterShards)]

	sh.mu.Lock()
	bucket, ok := sh.buckets[agentID]
	if !ok {
		bucket = rate.NewLimiter(r.limit, r.burst)
		sh.buckets[agentID] = bucket
	}
	sh.mu.Unlock()

	return bucket.Allow()
}
