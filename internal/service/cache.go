// cache.go: UserCache, an expirable LRU of user rows.
// Users are never updated or deleted, so entries only leave by TTL or eviction.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swap-mitra/city-vault/internal/domain/model"
)

var (
	userCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_user_cache_hits_total",
		Help: "User cache hits.",
	})
	userCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_user_cache_misses_total",
		Help: "User cache misses.",
	})
)

// UserCache caches users by id and by email.
type UserCache struct {
	cache *expirable.LRU[string, *model.User]
}

// NewUserCache creates the cache. maxSize counts keys, each user takes two.
func NewUserCache(maxSize int, ttl time.Duration) *UserCache {
	return &UserCache{
		cache: expirable.NewLRU[string, *model.User](maxSize, nil, ttl),
	}
}

// ByID returns a cached user by id.
func (c *UserCache) ByID(id string) (*model.User, bool) {
	return c.get("id:" + id)
}

// ByEmail returns a cached user by normalised email.
func (c *UserCache) ByEmail(email string) (*model.User, bool) {
	return c.get("email:" + email)
}

// Set stores u under both keys.
func (c *UserCache) Set(u *model.User) {
	c.cache.Add("id:"+u.ID, u)
	c.cache.Add("email:"+u.Email, u)
}

func (c *UserCache) get(key string) (*model.User, bool) {
	u, ok := c.cache.Get(key)
	if ok {
		userCacheHitsTotal.Inc()
		return u, true
	}
	userCacheMissesTotal.Inc()
	return nil, false
}
