// 包 bench：查询引擎与数据缓存的性能测量及正确性核对
package bench

import (
	"context"
	"math"
	"time"

	"payphone-api/internal/cache"
	"payphone-api/internal/query"
)

// Location：命名测试点
type Location struct {
	Name string
	Lat  float64
	Lon  float64
}

// CBDs：五个首府城市中心
var CBDs = []Location{
	{Name: "Sydney CBD", Lat: -33.8688, Lon: 151.2093},
	{Name: "Melbourne CBD", Lat: -37.8136, Lon: 144.9631},
	{Name: "Brisbane CBD", Lat: -27.4698, Lon: 153.0251},
	{Name: "Perth CBD", Lat: -31.9505, Lon: 115.8605},
	{Name: "Adelaide CBD", Lat: -34.9285, Lon: 138.6007},
}

// Iterations：各项测量的循环次数
type Iterations struct {
	Nearest  int
	Postcode int
	Cache    int
}

var DefaultIterations = Iterations{Nearest: 100, Postcode: 1000, Cache: 10}

// Report：测量结果，时间单位为毫秒
type Report struct {
	Records        int     `json:"records"`
	Candidates     int     `json:"candidates"`
	Reduction      float64 `json:"reduction_ratio"`
	NearestAvgMs   float64 `json:"nearest_avg_ms"`
	Postcode       string  `json:"postcode"`
	PostcodeHits   int     `json:"postcode_hits"`
	PostcodeAvgMs  float64 `json:"postcode_avg_ms"`
	CacheVersion   string  `json:"cache_version,omitempty"`
	CacheBytes     int     `json:"cache_bytes"`
	CacheReadAvgMs float64 `json:"cache_read_avg_ms"`
	CacheErr       string  `json:"cache_error,omitempty"`
}

// Check：单个测试点的索引结果与全量扫描结果对比
type Check struct {
	Location   Location `json:"location"`
	ID         int      `json:"id"`
	DistanceKm float64  `json:"distance_km"`
	BruteID    int      `json:"brute_id"`
	BruteKm    float64  `json:"brute_km"`
	Candidates int      `json:"candidates"`
	Pass       bool     `json:"pass"`
}

func avgMs(d time.Duration, n int) float64 {
	return float64(d.Microseconds()) / 1000 / float64(n)
}

// Measure：以 at 为中心测量最近查询，postcode 为邮编查询样本；c 为空时跳过缓存测量
// 约束：记录集为空时返回 query.ErrEmptyStore
func Measure(ctx context.Context, e *query.Engine, c *cache.Cache, at Location, postcode string, it Iterations) (Report, error) {
	rep := Report{Records: e.Store().Len(), Postcode: postcode}
	if rep.Records == 0 {
		return rep, query.ErrEmptyStore
	}
	rep.Candidates = len(e.Candidates(at.Lat, at.Lon))
	if rep.Candidates > 0 {
		rep.Reduction = float64(rep.Records) / float64(rep.Candidates)
	}

	t0 := time.Now()
	for i := 0; i < it.Nearest; i++ {
		if _, _, err := e.Nearest(at.Lat, at.Lon); err != nil {
			return rep, err
		}
	}
	rep.NearestAvgMs = avgMs(time.Since(t0), it.Nearest)

	t0 = time.Now()
	for i := 0; i < it.Postcode; i++ {
		rep.PostcodeHits = len(e.ByPostcode(postcode))
	}
	rep.PostcodeAvgMs = avgMs(time.Since(t0), it.Postcode)

	if c != nil {
		v, n, err := c.Inspect(ctx)
		if err != nil {
			rep.CacheErr = err.Error()
			return rep, nil
		}
		rep.CacheVersion, rep.CacheBytes = v, n
		t0 = time.Now()
		for i := 0; i < it.Cache; i++ {
			if _, _, err := c.Read(ctx); err != nil {
				rep.CacheErr = err.Error()
				return rep, nil
			}
		}
		rep.CacheReadAvgMs = avgMs(time.Since(t0), it.Cache)
	}
	return rep, nil
}

// Verify：各测试点的索引查询须与全量扫描给出同一记录，距离误差小于 1 米
func Verify(e *query.Engine, locs []Location) ([]Check, bool) {
	out := make([]Check, 0, len(locs))
	all := true
	for _, loc := range locs {
		ck := Check{Location: loc, Candidates: len(e.Candidates(loc.Lat, loc.Lon))}
		rec, d, err := e.Nearest(loc.Lat, loc.Lon)
		brec, bd, berr := e.NearestBruteForce(loc.Lat, loc.Lon)
		if err == nil && berr == nil {
			ck.ID, ck.DistanceKm, ck.BruteID, ck.BruteKm = rec.ID, d, brec.ID, bd
			ck.Pass = rec.ID == brec.ID && math.Abs(d-bd) < 0.001
		}
		all = all && ck.Pass
		out = append(out, ck)
	}
	return out, all
}
