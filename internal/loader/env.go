package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/redis/go-redis/v9"

	"payphone-api/internal/cache"
	"payphone-api/internal/logger"
	"payphone-api/internal/query"
	"payphone-api/internal/spatial"
)

// 默认路径，相对工作目录
var (
	DefaultSQLitePath = filepath.Join("data", "cache", "payphones.db")
	DefaultSourceFile = filepath.Join("data", "payphones_data.json")
)

// FromEnv：按环境变量装配加载器
//
//	CACHE_BACKEND  memory | redis | sqlite（默认 sqlite；redis 未配置时回退 memory）
//	CACHE_SQLITE_PATH, CACHE_VERSION
//	SOURCE         postgres | file | http（默认 postgres；pg 为空时回退 file）
//	SOURCE_FILE, SOURCE_URL, CELL_SIZE_DEG, MAX_RING
//
// 返回的 closer 释放缓存后端持有的资源
func FromEnv(pg Source, rc *redis.Client) (*Loader, func() error, error) {
	l := logger.L()
	closer := func() error { return nil }

	var kv cache.KV
	backend := os.Getenv("CACHE_BACKEND")
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "memory":
		kv = cache.NewMemKV()
	case "redis":
		if rc == nil {
			l.Warn("cache_backend_fallback", "want", "redis", "use", "memory")
			kv = cache.NewMemKV()
			break
		}
		kv = cache.NewRedisKV(rc)
	case "sqlite":
		path := os.Getenv("CACHE_SQLITE_PATH")
		if path == "" {
			path = DefaultSQLitePath
		}
		s, err := cache.OpenSQLiteKV(path)
		if err != nil {
			return nil, closer, err
		}
		kv, closer = s, s.Close
	default:
		return nil, closer, fmt.Errorf("loader: unknown CACHE_BACKEND %q", backend)
	}

	var src Source
	kind := os.Getenv("SOURCE")
	if kind == "" {
		kind = "postgres"
	}
	if kind == "postgres" && pg == nil {
		l.Warn("source_fallback", "want", "postgres", "use", "file")
		kind = "file"
	}
	switch kind {
	case "postgres":
		src = pg
	case "file":
		path := os.Getenv("SOURCE_FILE")
		if path == "" {
			path = DefaultSourceFile
		}
		src = FileSource{Path: path}
	case "http":
		u := os.Getenv("SOURCE_URL")
		if u == "" {
			return nil, closer, fmt.Errorf("loader: SOURCE=http requires SOURCE_URL")
		}
		src = HTTPSource{URL: u}
	default:
		return nil, closer, fmt.Errorf("loader: unknown SOURCE %q", kind)
	}

	cell := spatial.DefaultCellSize
	if s := os.Getenv("CELL_SIZE_DEG"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			cell = v
		}
	}
	var opts []query.Option
	if s := os.Getenv("MAX_RING"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			opts = append(opts, query.WithMaxRing(n))
		}
	}
	l.Info("loader_config", "cache", backend, "source", kind, "cell_size_deg", cell)
	return &Loader{
		Cache:    cache.New(kv),
		Source:   src,
		Version:  os.Getenv("CACHE_VERSION"),
		CellSize: cell,
		Options:  opts,
	}, closer, nil
}
