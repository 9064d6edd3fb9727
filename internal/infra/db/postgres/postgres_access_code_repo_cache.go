package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/repository"
	"course-billing/internal/infra/metrics"
	red "course-billing/internal/infra/redis"
)

var _ repository.AccessCodeRepository = (*accessCodeRepoCacheDecorator)(nil)

// accessCodeRepoCacheDecorator caches access-code reads in Redis. Any call
// carrying a live tx handle bypasses the cache entirely: reconciliation needs
// the FOR UPDATE read and the freshest used_count.
type accessCodeRepoCacheDecorator struct {
	inner repository.AccessCodeRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewAccessCodeRepoCacheDecorator(inner repository.AccessCodeRepository, cache red.RedisClient) repository.AccessCodeRepository {
	return &accessCodeRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   10 * time.Minute,
	}
}

func (d *accessCodeRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error) {
	if inTx(tx) {
		return d.inner.FindByID(ctx, tx, id)
	}

	key := fmt.Sprintf("access_code:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("access_code", "hit")
		var ac model.AccessCode
		if json.Unmarshal([]byte(val), &ac) == nil {
			return &ac, nil
		}
	}

	metrics.IncCacheRequest("access_code", "miss")
	ac, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(ac); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return ac, nil
}

func (d *accessCodeRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.AccessCode, error) {
	// Code-string lookups are rare (admin only); skip caching them.
	return d.inner.FindByCode(ctx, tx, code)
}

func (d *accessCodeRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.AccessCode, error) {
	return d.inner.ListAll(ctx, tx)
}

// Writes invalidate the per-id entry.
func (d *accessCodeRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	if code.ID != "" {
		_ = d.cache.Del(ctx, fmt.Sprintf("access_code:%s", code.ID))
	}
	return d.inner.Save(ctx, tx, code)
}

func (d *accessCodeRepoCacheDecorator) IncrementUsage(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	_ = d.cache.Del(ctx, fmt.Sprintf("access_code:%s", id))
	return d.inner.IncrementUsage(ctx, tx, id)
}
