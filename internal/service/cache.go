package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ambrosio03/TFG/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const catalogoCacheKey = "catalogo:visibles"

// catalogoCache holds the public catalog listing in Redis. Every method is a
// no-op on a nil client and cache errors never reach the caller.
type catalogoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func newCatalogoCache(rdb *redis.Client, ttl time.Duration) catalogoCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return catalogoCache{rdb: rdb, ttl: ttl}
}

func (c catalogoCache) get(ctx context.Context) ([]dto.ProductoResponse, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, catalogoCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var out []dto.ProductoResponse
	if json.Unmarshal(raw, &out) != nil {
		return nil, false
	}
	return out, true
}

func (c catalogoCache) set(ctx context.Context, productos []dto.ProductoResponse) {
	if c.rdb == nil {
		return
	}
	b, err := json.Marshal(productos)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, catalogoCacheKey, b, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Msg("catalogo: cache set failed")
	}
}

func (c catalogoCache) invalidar(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, catalogoCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("catalogo: cache invalidation failed")
	}
}
