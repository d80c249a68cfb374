package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"payphone-api/internal/geo"
	"payphone-api/internal/metrics"
	"payphone-api/internal/query"
)

// resultCache：最近查询的结果缓存
// 约束：键包含数据集作用域，换数据后旧结果自然失效；缓存错误只当作未命中
type resultCache interface {
	scope(e *query.Engine, gen uint64) string
	get(ctx context.Context, key string) (cachedNearest, bool)
	set(ctx context.Context, key string, v cachedNearest)
}

// nearestKey：作用域 + 原始坐标；坐标不做取整，命中结果与直接计算一致
func nearestKey(scope string, lat, lon float64) string {
	return "nearest:" + scope + ":" +
		strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

type redisResults struct {
	rc  *redis.Client
	ttl time.Duration
}

// scope：Redis 可被多个进程共享，代次只在本进程内有意义，改用记录集内容摘要
func (redisResults) scope(e *query.Engine, _ uint64) string { return e.Fingerprint() }

func (c redisResults) get(ctx context.Context, key string) (cachedNearest, bool) {
	var v cachedNearest
	s, err := c.rc.Get(ctx, key).Result()
	if err != nil || s == "" {
		return v, false
	}
	if json.Unmarshal([]byte(s), &v) != nil {
		return v, false
	}
	return v, true
}

func (c redisResults) set(ctx context.Context, key string, v cachedNearest) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.rc.Set(ctx, key, string(b), c.ttl).Err()
}

type lruResults struct {
	lru *geo.LRU[cachedNearest]
}

func (lruResults) scope(_ *query.Engine, gen uint64) string { return strconv.FormatUint(gen, 10) }

func (c lruResults) get(_ context.Context, key string) (cachedNearest, bool) {
	return c.lru.Get(key)
}

func (c lruResults) set(_ context.Context, key string, v cachedNearest) {
	c.lru.Set(key, v)
}

// newResultCache：有 Redis 时用 Redis，否则用进程内 LRU；ttl<=0 时关闭
func newResultCache(rc *redis.Client, ttl time.Duration) resultCache {
	if ttl <= 0 {
		return nil
	}
	if rc != nil {
		return redisResults{rc: rc, ttl: ttl}
	}
	return lruResults{lru: geo.NewLRU[cachedNearest](10000, ttl)}
}

func lookupCached(ctx context.Context, c resultCache, key string) (cachedNearest, bool) {
	if c == nil || key == "" {
		return cachedNearest{}, false
	}
	v, ok := c.get(ctx, key)
	if ok {
		metrics.ResultCacheHitsTotal.Inc()
	} else {
		metrics.ResultCacheMissesTotal.Inc()
	}
	return v, ok
}
