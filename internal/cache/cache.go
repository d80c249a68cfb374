package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payphone-api/internal/logger"
	"payphone-api/internal/metrics"
	"payphone-api/internal/payphone"
)

// 固定键名，与浏览器端 localStorage 保持一致
const (
	PayloadKey = "payphones_cache"
	VersionKey = "payphones_cache_version"
)

// ErrCacheMiss：缓存缺失或不可用；读取路径上的存储/解析错误都折叠为此错误
var ErrCacheMiss = errors.New("cache: miss")

// Cache：记录集快照 + 版本号
type Cache struct {
	kv KV
}

func New(kv KV) *Cache { return &Cache{kv: kv} }

// Read：读取版本与记录集
// 约束：存储错误、缺版本、缺载荷、JSON 解析失败、记录校验失败均返回 ErrCacheMiss，不向上抛解析异常
func (c *Cache) Read(ctx context.Context) (string, *payphone.Store, error) {
	version, st, reason := c.read(ctx)
	if reason != "" {
		logger.L().Debug("data_cache_miss", "reason", reason)
		metrics.DataCacheReadsTotal.WithLabelValues("miss").Inc()
		return "", nil, ErrCacheMiss
	}
	logger.L().Debug("data_cache_hit", "version", version, "records", st.Len())
	metrics.DataCacheReadsTotal.WithLabelValues("hit").Inc()
	return version, st, nil
}

func (c *Cache) read(ctx context.Context) (string, *payphone.Store, string) {
	version, ok, err := c.kv.Get(ctx, VersionKey)
	if err != nil {
		return "", nil, "version_read_error: " + err.Error()
	}
	if !ok || version == "" {
		return "", nil, "version_missing"
	}
	payload, ok, err := c.kv.Get(ctx, PayloadKey)
	if err != nil {
		return "", nil, "payload_read_error: " + err.Error()
	}
	if !ok || payload == "" {
		return "", nil, "payload_missing"
	}
	var raw []payphone.RawRecord
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return "", nil, "payload_parse_error: " + err.Error()
	}
	st, err := payphone.Load(raw)
	if err != nil {
		return "", nil, "payload_invalid: " + err.Error()
	}
	return version, st, ""
}

// Write：序列化记录集并写入载荷与版本，后写覆盖先写
// 约束：先写载荷后写版本
func (c *Cache) Write(ctx context.Context, version string, st *payphone.Store) error {
	if version == "" {
		return errors.New("cache: empty version")
	}
	b, err := Encode(st)
	if err != nil {
		metrics.DataCacheWritesTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := c.kv.Set(ctx, PayloadKey, string(b)); err != nil {
		metrics.DataCacheWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cache: write payload: %w", err)
	}
	if err := c.kv.Set(ctx, VersionKey, version); err != nil {
		metrics.DataCacheWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cache: write version: %w", err)
	}
	metrics.DataCacheWritesTotal.WithLabelValues("ok").Inc()
	logger.L().Debug("data_cache_write", "version", version, "records", st.Len(), "bytes", len(b))
	return nil
}

// Encode：稳定的 JSON 数组编码
func Encode(st *payphone.Store) ([]byte, error) {
	recs := st.Records()
	if recs == nil {
		recs = []payphone.Record{}
	}
	return json.Marshal(recs)
}

// Inspect：不解析载荷，仅返回版本与载荷字节数
func (c *Cache) Inspect(ctx context.Context) (string, int, error) {
	version, _, err := c.kv.Get(ctx, VersionKey)
	if err != nil {
		return "", 0, err
	}
	payload, _, err := c.kv.Get(ctx, PayloadKey)
	if err != nil {
		return "", 0, err
	}
	return version, len(payload), nil
}
