package query

import "sync/atomic"

// Holder：当前引擎的原子引用
// 约束：新引擎完全构建后才 Set，读路径不加锁，不会看到构建中的索引；每次 Set 代次加一，供结果缓存分代
type Holder struct {
	v atomic.Pointer[snapshot]
}

type snapshot struct {
	e   *Engine
	gen uint64
}

// Load：当前引擎与代次；未设置时返回 nil, 0
func (h *Holder) Load() (*Engine, uint64) {
	s := h.v.Load()
	if s == nil {
		return nil, 0
	}
	return s.e, s.gen
}

// Set：替换引擎
// WARNING: e 为 nil 时后续查询均返回未就绪
func (h *Holder) Set(e *Engine) {
	for {
		old := h.v.Load()
		next := &snapshot{e: e, gen: 1}
		if old != nil {
			next.gen = old.gen + 1
		}
		if h.v.CompareAndSwap(old, next) {
			return
		}
	}
}
