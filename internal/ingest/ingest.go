// 包 ingest：上游公用电话数据的离线拉取、去重与导入
package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"payphone-api/internal/logger"
	"payphone-api/internal/telstra"
)

// Lister：单页拉取接口，由 telstra.Client 实现
type Lister interface {
	ListPage(ctx context.Context, pt telstra.Point, from int) ([]telstra.Payphone, error)
}

// Importer：导入目标，由 store.Store 实现
type Importer interface {
	Import(ctx context.Context, importID string, list []telstra.Payphone) (int, error)
}

// Report：一次拉取的统计
type Report struct {
	Pages       int
	FailedPages int
	Raw         int
	Unique      int
}

// Fetch：各搜索点并行、点内按页顺序拉取，合并去重
// 背景：单个搜索点的分页上限覆盖不到全国，多个点的结果大量重叠
// 约束：失败页只记日志并跳过；ctx 取消时返回 ctx.Err()；结果按去重键排序，保证重复运行输出稳定
func Fetch(ctx context.Context, ls Lister, regions []telstra.Region, maxFrom int) ([]telstra.Payphone, Report, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]telstra.Payphone)
		rep  Report
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, rg := range regions {
		rg := rg
		g.Go(func() error {
			logger.L().Info("ingest_region_begin", "region", rg.Name)
			for from := 0; from < maxFrom; from += telstra.PageSize {
				if err := gctx.Err(); err != nil {
					return err
				}
				list, err := ls.ListPage(gctx, rg.Point, from)
				mu.Lock()
				rep.Pages++
				if err != nil {
					rep.FailedPages++
					mu.Unlock()
					logger.L().Warn("ingest_page_fail", "region", rg.Name, "from", from, "err", err)
					continue
				}
				rep.Raw += len(list)
				for _, p := range list {
					seen[p.Key()] = p
				}
				mu.Unlock()
			}
			logger.L().Info("ingest_region_done", "region", rg.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, rep, err
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]telstra.Payphone, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	rep.Unique = len(out)
	logger.L().Info("ingest_fetch_done", "pages", rep.Pages, "failed_pages", rep.FailedPages, "raw", rep.Raw, "unique", rep.Unique)
	return out, rep, nil
}

// Refresh：拉取并导入，返回导入批次号
// 约束：全部页失败（无任何数据）时不导入，避免用空集覆盖
func Refresh(ctx context.Context, ls Lister, imp Importer, regions []telstra.Region, maxFrom int) (string, Report, error) {
	t0 := time.Now()
	list, rep, err := Fetch(ctx, ls, regions, maxFrom)
	if err != nil {
		return "", rep, err
	}
	if len(list) == 0 {
		return "", rep, ErrNoData
	}
	id := uuid.NewString()
	if _, err := imp.Import(ctx, id, list); err != nil {
		return id, rep, err
	}
	logger.L().Info("ingest_refresh_done", "import_id", id, "records", len(list), "duration_ms", time.Since(t0).Milliseconds())
	return id, rep, nil
}
