// 包 cache：记录集的本地持久化缓存，底层为可替换的键值存储
package cache

import (
	"context"
	"sync"
)

// KV：按键读写字符串的最小能力
// 约束：单键写入原子；Get 未命中返回 ok=false 且 err=nil
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemKV：进程内实现，用于测试与无持久化部署
type MemKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemKV() *MemKV { return &MemKV{m: make(map[string]string)} }

func (k *MemKV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *MemKV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = value
	return nil
}
