// Package ratecache keeps a JSON copy of the discount rate table in Redis.
package ratecache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

// Key is the Redis key holding the encoded rate table. Bump the version when
// the encoding changes.
//
// GenKey counts invalidations. Both keys share a hash tag so they land in the
// same cluster slot.
const (
	Key    = "{sales:rates}:table:v2"
	GenKey = "{sales:rates}:gen"
)

var _ discount.Cache = (*Cache)(nil)

// Cache implements discount.Cache on Redis.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New returns a Cache that expires entries after ttl. A non-positive ttl
// keeps entries until they are invalidated.
func New(client redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached table, or discount.ErrCacheMiss together with the
// current generation.
func (c *Cache) Get(ctx context.Context) (*pricing.RateTable, int64, error) {
	vals, err := c.client.MGet(ctx, GenKey, Key).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, "redis mget")
	}
	gen, err := parseGen(vals[0])
	if err != nil {
		return nil, 0, err
	}

	data, ok := vals[1].(string)
	if !ok {
		return nil, gen, discount.ErrCacheMiss
	}
	var t pricing.RateTable
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		// A payload we cannot read is as good as absent.
		return nil, gen, errors.Wrapf(discount.ErrCacheMiss, "decode: %v", err)
	}
	return &t, gen, nil
}

// Set stores the table if no invalidation happened since generation gen was
// read. A superseded table is dropped silently.
func (c *Cache) Set(ctx context.Context, gen int64, t *pricing.RateTable) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode rate table")
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, GenKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return errors.Wrap(err, "redis get generation")
		}
		cur, err := parseGen(raw)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key, data, c.ttl)
			return nil
		})
		return err
	}, GenKey)
	switch {
	case err == nil, errors.Is(err, redis.TxFailedErr):
		// TxFailedErr means an Invalidate raced the write; the table is stale.
		return nil
	default:
		return errors.Wrap(err, "redis set")
	}
}

// Invalidate drops the cached table and starts a new generation.
func (c *Cache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenKey)
		pipe.Del(ctx, Key)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis invalidate")
	}
	return nil
}

func parseGen(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		if v == "" {
			return 0, nil
		}
		gen, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse generation %q", v)
		}
		return gen, nil
	default:
		return 0, errors.Errorf("unexpected generation type %T", v)
	}
}
