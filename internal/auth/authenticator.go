package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultCacheTTL = 5 * time.Minute

// KeyPrefix namespaces API keys provisioned in redis.
const KeyPrefix = "pathgreen:apikey:"

type cacheEntry struct {
	owner     string
	expiresAt time.Time
}

// Authenticator accepts the static keys from configuration, then keys
// provisioned in redis, caching redis hits in memory for ttl.
type Authenticator struct {
	static [][]byte
	redis  *redis.Client
	ttl    time.Duration
	cache  sync.Map
	now    func() time.Time
}

// NewAuthenticator parses a comma separated key list. With no keys at all an
// ephemeral one is generated and logged by prefix only.
func NewAuthenticator(keys string, rdb *redis.Client, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	a := &Authenticator{redis: rdb, ttl: ttl, now: time.Now}
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			a.static = append(a.static, []byte(k))
		}
	}
	if len(a.static) == 0 && rdb == nil {
		key := strings.ReplaceAll(uuid.NewString(), "-", "")
		a.static = append(a.static, []byte(key))
		log.Warn().Str("key_prefix", key[:8]).Msg("no API_KEY set, generated an ephemeral key")
	}
	return a
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	if apiKey == "" {
		return false
	}
	candidate := []byte(apiKey)
	for _, k := range a.static {
		if subtle.ConstantTimeCompare(k, candidate) == 1 {
			return true
		}
	}

	if raw, ok := a.cache.Load(apiKey); ok {
		if a.now().Before(raw.(cacheEntry).expiresAt) {
			return true
		}
		a.cache.Delete(apiKey)
	}

	if a.redis == nil {
		return false
	}
	owner, err := a.redis.Get(ctx, KeyPrefix+apiKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("api key lookup failed")
		}
		return false
	}
	a.cache.Store(apiKey, cacheEntry{owner: owner, expiresAt: a.now().Add(a.ttl)})
	log.Debug().Str("owner", owner).Msg("api key accepted")
	return true
}
