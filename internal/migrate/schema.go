package migrate

import (
	"database/sql"

	"payphone-api/internal/logger"
)

// EnsureSchema：首次运行建表
// 约束：全部使用 IF NOT EXISTS，可重复执行
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _payphones (
            id SERIAL PRIMARY KEY,
            latitude DOUBLE PRECISION NOT NULL,
            longitude DOUBLE PRECISION NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            state TEXT NOT NULL DEFAULT '',
            postcode TEXT NOT NULL DEFAULT '',
            number TEXT NOT NULL DEFAULT '',
            cabinet_id TEXT NOT NULL DEFAULT '',
            import_id TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_payphone ON _payphones(latitude, longitude, address, cabinet_id, number)`,
		`CREATE INDEX IF NOT EXISTS idx_payphone_postcode ON _payphones(postcode)`,
		`CREATE TABLE IF NOT EXISTS _payphone_imports (
            id TEXT PRIMARY KEY,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ,
            records INT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _payphone_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0,
            total_visitors BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _payphone_stats_daily (
            day DATE PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0,
            visitors BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _payphone_stats_total(id, total_queries, total_visitors)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
