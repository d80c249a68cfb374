// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"payphone-api/internal/api"
	"payphone-api/internal/geoip"
	"payphone-api/internal/ingest"
	"payphone-api/internal/loader"
	"payphone-api/internal/logger"
	"payphone-api/internal/metrics"
	"payphone-api/internal/middleware"
	"payphone-api/internal/migrate"
	"payphone-api/internal/query"
	"payphone-api/internal/store"
	"payphone-api/internal/telstra"
	"payphone-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres 为可选：记录源、导入与查询统计；SOURCE 非 postgres 且未配置 PG_HOST 时跳过
	var st *store.Store
	var src loader.Source
	if os.Getenv("SOURCE") == "" || os.Getenv("SOURCE") == "postgres" || os.Getenv("PG_HOST") != "" {
		if db, err := openDB(l); err == nil {
			defer db.Close()
			st = store.AttachDB(db)
			src = st
		}
	} else {
		l.Info("db_disabled")
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		rc = nil
	} else {
		l.Info("redis_ping_ok")
		defer rc.Close()
	}

	ld, closeCache, err := loader.FromEnv(src, rc)
	if err != nil {
		l.Error("loader_config_error", "err", err)
		os.Exit(1)
	}
	defer closeCache()

	var holder query.Holder
	if _, err := ld.Swap(ctx, &holder); err != nil {
		// 背景：启动时数据不可用不退出，/reload 或定时导入成功后即可服务
		l.Error("initial_load_error", "err", err)
	}

	var loc api.Locator
	if p := os.Getenv("GEOIP_PATH"); p != "" {
		if g, err := geoip.Open(p); err == nil {
			defer g.Close()
			loc = g
			l.Info("geoip_ready", "path", p)
		} else {
			l.Error("geoip_open_error", "path", p, "err", err)
		}
	}

	reload := func(ctx context.Context) error {
		refresh := *ld
		refresh.Refresh = true
		_, err := refresh.Swap(ctx, &holder)
		return err
	}

	// 每周自动导入：需要 Postgres 作为导入目标
	if os.Getenv("INGEST_WEEKLY") == "true" {
		if st == nil {
			l.Warn("ingest_weekly_skipped", "reason", "no_db")
		} else {
			client := telstra.NewClient(os.Getenv("TELSTRA_URL"), nil).WithQPS(upstreamQPS())
			ingest.StartWeekly(ctx, func(ctx context.Context) error {
				if _, _, err := ingest.Refresh(ctx, client, st, telstra.DefaultRegions, telstra.MaxFrom); err != nil {
					return err
				}
				return reload(ctx)
			})
		}
	}

	ttl := 10 * time.Minute
	if s := os.Getenv("RESULT_CACHE_TTL_S"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			ttl = time.Duration(n) * time.Second
		}
	}
	apiMux := api.BuildRoutes(api.Deps{
		Holder:     &holder,
		Store:      st,
		Redis:      rc,
		GeoIP:      loc,
		Reload:     reload,
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		ResultTTL:  ttl,
	})
	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if files, ok := utils.TLSFromEnv(); ok {
		if err := utils.EnsureSelfSignedCert(files.Cert, files.Key, "payphone-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", files.Cert)
		if err := s.ListenAndServeTLS(files.Cert, files.Key); err != nil {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil {
		l.Error("server_error", "err", err)
	}
}

// openDB：连接并建表；失败时返回错误，调用方按“无数据库”降级
func openDB(l *slog.Logger) (*sql.DB, error) {
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
		db.Close()
		return nil, err
	}
	l.Info("db_ping_ok")
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		db.Close()
		return nil, err
	}
	return db, nil
}

// upstreamQPS：TELSTRA_QPS，默认每秒 5 次
func upstreamQPS() float64 {
	if s := os.Getenv("TELSTRA_QPS"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return 5
}
