// 包 loader：启动/重载时的数据装配
//
// 文档注释：优先读取本地缓存；缺失或版本不符时回源拉取，校验后回写缓存并构建查询引擎
// 背景：上游数据一周才变一次，重启不必每次回源
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payphone-api/internal/cache"
	"payphone-api/internal/logger"
	"payphone-api/internal/metrics"
	"payphone-api/internal/payphone"
	"payphone-api/internal/query"
)

// Source：原始记录来源
type Source interface {
	Fetch(ctx context.Context) ([]payphone.RawRecord, error)
}

// Outcome：本次加载走了哪条路径
type Outcome string

const (
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeFetched  Outcome = "fetched"
	OutcomeError    Outcome = "error"
)

// Loader：组合缓存、数据源与引擎参数
// Version 为空时接受任意缓存版本；回源后写入新生成的 uuid
// Refresh 为真时跳过缓存读取，总是回源
type Loader struct {
	Cache    *cache.Cache
	Source   Source
	Version  string
	CellSize float64
	Options  []query.Option
	Refresh  bool
}

// Load：返回可直接服务的引擎
// 约束：回源失败时返回错误，不产生半成品引擎；缓存写失败只记日志
func (l *Loader) Load(ctx context.Context) (*query.Engine, Outcome, error) {
	t0 := time.Now()
	e, out, err := l.load(ctx)
	metrics.LoadsTotal.WithLabelValues(string(out)).Inc()
	if err != nil {
		logger.L().Error("load_fail", "err", err, "duration_ms", time.Since(t0).Milliseconds())
		return nil, out, err
	}
	metrics.Records.Set(float64(e.Store().Len()))
	logger.L().Info("load_done", "outcome", string(out), "records", e.Store().Len(), "duration_ms", time.Since(t0).Milliseconds())
	return e, out, nil
}

func (l *Loader) load(ctx context.Context) (*query.Engine, Outcome, error) {
	if l.Cache != nil && !l.Refresh {
		version, st, err := l.Cache.Read(ctx)
		switch {
		case err == nil && (l.Version == "" || version == l.Version):
			e, err := query.New(st, l.CellSize, l.Options...)
			if err != nil {
				return nil, OutcomeError, err
			}
			return e, OutcomeCacheHit, nil
		case err == nil:
			logger.L().Info("data_cache_stale", "cached", version, "expected", l.Version)
		case !errors.Is(err, cache.ErrCacheMiss):
			return nil, OutcomeError, err
		}
	}
	if l.Source == nil {
		return nil, OutcomeError, errors.New("loader: no source configured")
	}
	raw, err := l.Source.Fetch(ctx)
	if err != nil {
		return nil, OutcomeError, fmt.Errorf("loader: fetch: %w", err)
	}
	st, err := payphone.Load(raw)
	if err != nil {
		return nil, OutcomeError, err
	}
	e, err := query.New(st, l.CellSize, l.Options...)
	if err != nil {
		return nil, OutcomeError, err
	}
	if l.Cache != nil {
		version := l.Version
		if version == "" {
			version = uuid.NewString()
		}
		if err := l.Cache.Write(ctx, version, st); err != nil {
			logger.L().Warn("data_cache_write_fail", "err", err)
		}
	}
	return e, OutcomeFetched, nil
}

// Swap：加载成功后原子替换 h 中的引擎；失败时保留旧引擎继续服务
func (l *Loader) Swap(ctx context.Context, h *query.Holder) (Outcome, error) {
	e, out, err := l.Load(ctx)
	if err != nil {
		return out, err
	}
	h.Set(e)
	_, gen := h.Load()
	logger.L().Info("engine_swapped", "generation", gen, "records", e.Store().Len())
	return out, nil
}
