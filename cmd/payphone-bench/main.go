// 性能测量工具：按服务相同的配置加载数据，测量最近查询、邮编查询与缓存读取，并核对五个首府的结果
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"payphone-api/internal/bench"
	"payphone-api/internal/loader"
	"payphone-api/internal/logger"
	"payphone-api/internal/store"
	"payphone-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	ctx := context.Background()

	var src loader.Source
	if s := os.Getenv("SOURCE"); s == "" || s == "postgres" {
		if db, err := utils.OpenPostgresFromEnv(); err == nil && db.PingContext(ctx) == nil {
			defer db.Close()
			src = store.AttachDB(db)
		} else if err == nil {
			closeQuiet(db)
		}
	}
	rc := utils.OpenRedisFromEnv()
	if rc != nil && rc.Ping(ctx).Err() != nil {
		rc = nil
	}

	ld, closeCache, err := loader.FromEnv(src, rc)
	if err != nil {
		l.Error("loader_config_error", "err", err)
		os.Exit(1)
	}
	defer closeCache()
	e, out, err := ld.Load(ctx)
	if err != nil {
		l.Error("load_error", "err", err)
		os.Exit(1)
	}
	l.Info("bench_loaded", "outcome", string(out), "stats", e.Stats())

	postcode := os.Getenv("BENCH_POSTCODE")
	if postcode == "" {
		postcode = "2000"
	}
	rep, err := bench.Measure(ctx, e, ld.Cache, bench.CBDs[0], postcode, bench.DefaultIterations)
	if err != nil {
		l.Error("bench_error", "err", err)
		os.Exit(1)
	}
	checks, ok := bench.Verify(e, bench.CBDs)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"report": rep, "checks": checks, "all_pass": ok})
	if !ok {
		l.Error("bench_verify_failed")
		os.Exit(1)
	}
}

func closeQuiet(db *sql.DB) { _ = db.Close() }
