// Package redis adapts github.com/redis/go-redis/v9 to the ports.Cache
// interface, backing rate-limit sorted sets and breaker/health JSON blobs
// across multiple gateway instances (spec.md §3, §10).
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Provider is a ports.Cache backed by a single redis client.
type Provider struct {
	rdb *redis.Client
}

// New dials addr lazily (go-redis connects on first use) and returns a Provider.
func New(addr, password string, db int) *Provider {
	return &Provider{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

func (p *Provider) ZAddNow(ctx context.Context, key string, now time.Time, member string) error {
	score := float64(now.UnixMilli())
	return p.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (p *Provider) ZRemRangeByScore(ctx context.Context, key string, maxScore float64) error {
	// "(" makes the upper bound exclusive: [0, maxScore), as ports.Cache documents.
	return p.rdb.ZRemRangeByScore(ctx, key, "0", "("+strconv.FormatFloat(maxScore, 'f', -1, 64)).Err()
}

func (p *Provider) ZRem(ctx context.Context, key string, member string) error {
	return p.rdb.ZRem(ctx, key, member).Err()
}

func (p *Provider) ZOldestScore(ctx context.Context, key string) (float64, bool, error) {
	results, err := p.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return 0, false, err
	}
	if len(results) == 0 {
		return 0, false, nil
	}
	return results[0].Score, true, nil
}

func (p *Provider) ZCard(ctx context.Context, key string) (int64, error) {
	return p.rdb.ZCard(ctx, key).Result()
}

func (p *Provider) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return p.rdb.Expire(ctx, key, ttl).Err()
}

func (p *Provider) Close() error {
	return p.rdb.Close()
}
