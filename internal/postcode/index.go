// 包 postcode：邮编精确匹配索引
package postcode

import (
	"sort"

	"payphone-api/internal/payphone"
)

// Index：邮编 → 记录位置列表
// 约束：各列表并集恰好覆盖记录集一次；组内保持记录集原始顺序
type Index struct {
	st     *payphone.Store
	groups map[string][]int
}

func Build(st *payphone.Store) *Index {
	ix := &Index{st: st, groups: make(map[string][]int)}
	for pos := 0; pos < st.Len(); pos++ {
		pc := st.At(pos).Postcode
		ix.groups[pc] = append(ix.groups[pc], pos)
	}
	return ix
}

// Lookup：按邮编精确匹配；未知邮编返回空切片而非错误
func (ix *Index) Lookup(code string) []payphone.Record {
	ps := ix.groups[code]
	out := make([]payphone.Record, 0, len(ps))
	for _, p := range ps {
		out = append(out, ix.st.At(p))
	}
	return out
}

// Positions：邮编对应的位置副本
func (ix *Index) Positions(code string) []int {
	return append([]int(nil), ix.groups[code]...)
}

// Len：不同邮编的数量
func (ix *Index) Len() int { return len(ix.groups) }

// Codes：全部邮编（字典序）
func (ix *Index) Codes() []string {
	out := make([]string, 0, len(ix.groups))
	for k := range ix.groups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
