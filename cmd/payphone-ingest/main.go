// 数据导入工具：从上游列表接口拉取全国公用电话，写出 JSON/GeoJSON 并可选导入 PostgreSQL
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"payphone-api/internal/ingest"
	"payphone-api/internal/logger"
	"payphone-api/internal/migrate"
	"payphone-api/internal/store"
	"payphone-api/internal/telstra"
	"payphone-api/internal/utils"
)

// 环境变量：
//
//	INGEST_OUT_DIR  输出目录（默认 data）；设为 "-" 时不写文件
//	INGEST_STATES   额外按州导出的列表，逗号分隔（默认 NSW）
//	INGEST_DB       true 时导入 PostgreSQL（PG_*）
//	INGEST_MAX_FROM 分页起点上限（默认 9000）
//	TELSTRA_URL     上游地址
//	TELSTRA_QPS     上游请求速率（默认 5）
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	maxFrom := telstra.MaxFrom
	if s := os.Getenv("INGEST_MAX_FROM"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			maxFrom = n
		}
	}
	client := telstra.NewClient(os.Getenv("TELSTRA_URL"), nil).WithQPS(upstreamQPS())
	list, rep, err := ingest.Fetch(ctx, client, telstra.DefaultRegions, maxFrom)
	if err != nil {
		l.Error("ingest_fetch_error", "err", err)
		os.Exit(1)
	}
	if len(list) == 0 {
		l.Error("ingest_empty", "pages", rep.Pages, "failed_pages", rep.FailedPages)
		os.Exit(1)
	}

	out := os.Getenv("INGEST_OUT_DIR")
	if out == "" {
		out = "data"
	}
	if out != "-" {
		states := []string{"NSW"}
		if s, ok := os.LookupEnv("INGEST_STATES"); ok {
			states = nil
			for _, p := range strings.Split(s, ",") {
				if p = strings.TrimSpace(p); p != "" {
					states = append(states, strings.ToUpper(p))
				}
			}
		}
		paths, err := ingest.WriteFiles(out, list, states...)
		if err != nil {
			l.Error("ingest_write_error", "err", err)
			os.Exit(1)
		}
		for _, p := range paths {
			l.Info("ingest_file_written", "path", p)
		}
	}

	if os.Getenv("INGEST_DB") == "true" {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		n, err := store.AttachDB(db).Import(ctx, uuid.NewString(), list)
		if err != nil {
			l.Error("db_import_error", "err", err, "imported", n)
			os.Exit(1)
		}
	}
	l.Info("ingest_done", "records", len(list), "pages", rep.Pages, "failed_pages", rep.FailedPages)
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
