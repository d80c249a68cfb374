// 包 spatial：按经纬度网格划分记录位置，为最近邻查询缩小候选集
package spatial

import (
	"errors"
	"math"
	"slices"

	"payphone-api/internal/payphone"
)

// DefaultCellSize：默认网格边长（度）
const DefaultCellSize = 0.1

var ErrBadCellSize = errors.New("spatial: cell size must be positive and finite")

// CellKey：网格键 (floor(lat/size), floor(lon/size))
type CellKey struct {
	Lat int64
	Lon int64
}

// Grid：网格索引
// 约束：每条记录恰好落入一个单元；边长在构建时固定；构建后只读，可并发查询
// 约束：经度方向不做 ±180 回绕
type Grid struct {
	size      float64
	cells     map[CellKey][]int
	total     int
	maxAbsLat float64
}

// Build：按 floor 语义分配单元，边界点归入较大一侧的单元
func Build(st *payphone.Store, cellSize float64) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, ErrBadCellSize
	}
	g := &Grid{size: cellSize, cells: make(map[CellKey][]int)}
	for pos := 0; pos < st.Len(); pos++ {
		r := st.At(pos)
		k := g.Key(r.Latitude, r.Longitude)
		g.cells[k] = append(g.cells[k], pos)
		if a := math.Abs(r.Latitude); a > g.maxAbsLat {
			g.maxAbsLat = a
		}
	}
	g.total = st.Len()
	return g, nil
}

func (g *Grid) Key(lat, lon float64) CellKey {
	return CellKey{Lat: int64(math.Floor(lat / g.size)), Lon: int64(math.Floor(lon / g.size))}
}

func (g *Grid) CellSize() float64 { return g.size }

func (g *Grid) CellCount() int { return len(g.cells) }

// Len：已索引记录数
func (g *Grid) Len() int { return g.total }

// MaxAbsLat：所有记录纬度绝对值的最大值
func (g *Grid) MaxAbsLat() float64 { return g.maxAbsLat }

// Candidates：查询点所在单元及 8 邻域的记录位置（升序）
// 约束：仅为粗过滤，结果可能为空
func (g *Grid) Candidates(lat, lon float64) []int {
	c := g.Key(lat, lon)
	var out []int
	for dl := int64(-1); dl <= 1; dl++ {
		for dn := int64(-1); dn <= 1; dn++ {
			out = append(out, g.cells[CellKey{Lat: c.Lat + dl, Lon: c.Lon + dn}]...)
		}
	}
	slices.Sort(out)
	return out
}

// Ring：与查询单元切比雪夫距离恰为 r 的单元中的记录位置（升序）；r=0 即查询单元本身
func (g *Grid) Ring(lat, lon float64, r int) []int {
	if r < 0 {
		return nil
	}
	c := g.Key(lat, lon)
	rr := int64(r)
	var out []int
	// 稀疏时直接遍历已占用单元，避免外圈枚举大量空单元
	if 8*r > len(g.cells) {
		for k, ps := range g.cells {
			if chebyshev(k, c) == rr {
				out = append(out, ps...)
			}
		}
		slices.Sort(out)
		return out
	}
	if r == 0 {
		return append(out, g.cells[c]...)
	}
	for d := -rr; d <= rr; d++ {
		out = append(out, g.cells[CellKey{Lat: c.Lat - rr, Lon: c.Lon + d}]...)
		out = append(out, g.cells[CellKey{Lat: c.Lat + rr, Lon: c.Lon + d}]...)
	}
	for d := -rr + 1; d <= rr-1; d++ {
		out = append(out, g.cells[CellKey{Lat: c.Lat + d, Lon: c.Lon - rr}]...)
		out = append(out, g.cells[CellKey{Lat: c.Lat + d, Lon: c.Lon + rr}]...)
	}
	slices.Sort(out)
	return out
}

// MaxRing：查询单元到最远已占用单元的切比雪夫距离；无记录时为 -1
func (g *Grid) MaxRing(lat, lon float64) int {
	c := g.Key(lat, lon)
	far := int64(-1)
	for k := range g.cells {
		if d := chebyshev(k, c); d > far {
			far = d
		}
	}
	return int(far)
}

func chebyshev(a, b CellKey) int64 {
	dl := a.Lat - b.Lat
	if dl < 0 {
		dl = -dl
	}
	dn := a.Lon - b.Lon
	if dn < 0 {
		dn = -dn
	}
	if dl > dn {
		return dl
	}
	return dn
}
