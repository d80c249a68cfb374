// 包 query：对外查询入口，组合记录集、网格索引与邮编索引
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"payphone-api/internal/geo"
	"payphone-api/internal/payphone"
	"payphone-api/internal/postcode"
	"payphone-api/internal/spatial"
)

var (
	ErrEmptyStore    = errors.New("query: record store is empty")
	ErrBadCoordinate = errors.New("query: coordinate out of range")
)

// DefaultMaxRing：逐圈扩展的上限，超过后退化为全量扫描
const DefaultMaxRing = 10

// 距离下界比较时的容差（千米），抵消下界计算的舍入
const boundSlack = 1e-9

type Option func(*Engine)

func WithMaxRing(n int) Option {
	return func(e *Engine) {
		if n >= 2 {
			e.maxRing = n
		}
	}
}

// Engine：构建完成后只读，可被多个请求并发使用
type Engine struct {
	st      *payphone.Store
	grid    *spatial.Grid
	pc      *postcode.Index
	maxRing int
	fp      string
}

// New：先构建两个索引，再返回可用引擎；构建失败不会产生半成品
func New(st *payphone.Store, cellSize float64, opts ...Option) (*Engine, error) {
	g, err := spatial.Build(st, cellSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{st: st, grid: g, pc: postcode.Build(st), maxRing: DefaultMaxRing, fp: fingerprint(st)}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Fingerprint：记录集内容摘要（xxhash64，十六进制）
// 约束：只取决于记录内容与顺序，与进程和加载次数无关；跨进程共享的缓存以此区分数据集
func (e *Engine) Fingerprint() string { return e.fp }

func fingerprint(st *payphone.Store) string {
	d := xxhash.New()
	for p := 0; p < st.Len(); p++ {
		b, err := json.Marshal(st.At(p))
		if err != nil {
			b = []byte(fmt.Sprint(st.At(p)))
		}
		_, _ = d.Write(b)
		_, _ = d.Write([]byte{'\n'})
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// Nearest：最近的公用电话及其距离（千米）
// 流程：3×3 邻域候选 → 逐圈外扩，直到下一圈的距离下界超过当前最优 → 超过 maxRing 时全量扫描
// 约束：距离相同取记录集位置最小者；结果与 NearestBruteForce 一致
// 经度下界按回绕取值：越过 ±180 的记录经度差不小于 180-|lon|，下界封顶于此
func (e *Engine) Nearest(lat, lon float64) (payphone.Record, float64, error) {
	if e.st.Len() == 0 {
		return payphone.Record{}, 0, ErrEmptyStore
	}
	if !geo.ValidLat(lat) || !geo.ValidLon(lon) {
		return payphone.Record{}, 0, ErrBadCoordinate
	}
	best, bestD := -1, math.Inf(1)
	scan := func(ps []int) {
		for _, p := range ps {
			r := e.st.At(p)
			d := geo.Haversine(lat, lon, r.Latitude, r.Longitude)
			if d < bestD || (d == bestD && p < best) {
				best, bestD = p, d
			}
		}
	}
	scan(e.grid.Candidates(lat, lon))

	cosMin := math.Min(math.Cos(lat*math.Pi/180), math.Cos(e.grid.MaxAbsLat()*math.Pi/180))
	wrap := 180 - math.Abs(lon)
	far := -2
	for r := 2; ; r++ {
		lb := geo.MinDistanceForLonGap(math.Min(float64(r-1)*e.grid.CellSize(), wrap), cosMin)
		if best >= 0 && lb-boundSlack > bestD {
			break
		}
		if far == -2 {
			far = e.grid.MaxRing(lat, lon)
		}
		if r > far {
			break
		}
		if r > e.maxRing {
			return e.NearestBruteForce(lat, lon)
		}
		scan(e.grid.Ring(lat, lon, r))
	}
	return e.st.At(best), bestD, nil
}

// NearestBruteForce：O(n) 基线，平局规则与 Nearest 相同
func (e *Engine) NearestBruteForce(lat, lon float64) (payphone.Record, float64, error) {
	if e.st.Len() == 0 {
		return payphone.Record{}, 0, ErrEmptyStore
	}
	if !geo.ValidLat(lat) || !geo.ValidLon(lon) {
		return payphone.Record{}, 0, ErrBadCoordinate
	}
	best, bestD := 0, math.Inf(1)
	for p := 0; p < e.st.Len(); p++ {
		r := e.st.At(p)
		if d := geo.Haversine(lat, lon, r.Latitude, r.Longitude); d < bestD {
			best, bestD = p, d
		}
	}
	return e.st.At(best), bestD, nil
}

// ByPostcode：去除首尾空白后精确匹配；未知邮编返回空切片
func (e *Engine) ByPostcode(code string) []payphone.Record {
	return e.pc.Lookup(strings.TrimSpace(code))
}

// Candidates：网格给出的 3×3 候选位置
func (e *Engine) Candidates(lat, lon float64) []int { return e.grid.Candidates(lat, lon) }

func (e *Engine) Store() *payphone.Store { return e.st }

type Stats struct {
	Records   int     `json:"records"`
	Cells     int     `json:"cells"`
	Postcodes int     `json:"postcodes"`
	CellSize  float64 `json:"cell_size_deg"`
}

func (e *Engine) Stats() Stats {
	return Stats{Records: e.st.Len(), Cells: e.grid.CellCount(), Postcodes: e.pc.Len(), CellSize: e.grid.CellSize()}
}
