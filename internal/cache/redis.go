package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrCacheMiss is returned when a key is not found in the cache
var ErrCacheMiss = errors.New("cache miss")

// SearchCache caches aggregated per-artist search results in Redis. A nil or
// disabled cache is safe to call; every operation degrades to a miss.
type SearchCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

// NewSearchCache creates a Redis-backed search cache. When Redis is disabled
// or unreachable the returned cache is inert rather than an error.
func NewSearchCache(cfg config.RedisConfig, ttl time.Duration) (*SearchCache, error) {
	if !cfg.Enabled {
		log.Info().Msg("Redis cache is disabled")
		return &SearchCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("Connected to Redis")
	return &SearchCache{client: client, ttl: ttl, enabled: true}, nil
}

func searchKey(artist, countryCode string) string {
	artist = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(artist)), " ", "_")
	return fmt.Sprintf("concert_search:%s:%s", strings.ToUpper(countryCode), artist)
}

// GetSearch returns cached results for an artist, or ErrCacheMiss
func (c *SearchCache) GetSearch(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	if c == nil || !c.enabled {
		return nil, ErrCacheMiss
	}

	data, err := c.client.Get(ctx, searchKey(artist, countryCode)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get cached search")
	}

	var concerts []models.ConcertEvent
	if err := json.Unmarshal(data, &concerts); err != nil {
		return nil, errors.Wrap(err, "failed to decode cached search")
	}
	return concerts, nil
}

// SetSearch caches results for an artist. Empty result sets are cached too,
// so an artist with no concerts does not hammer the sources every cycle.
func (c *SearchCache) SetSearch(ctx context.Context, artist, countryCode string, concerts []models.ConcertEvent) error {
	if c == nil || !c.enabled {
		return nil
	}

	data, err := json.Marshal(concerts)
	if err != nil {
		return errors.Wrap(err, "failed to encode search results")
	}

	if err := c.client.Set(ctx, searchKey(artist, countryCode), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to cache search results")
	}
	return nil
}

// Close closes the underlying Redis connection
func (c *SearchCache) Close() error {
	if c == nil || !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
