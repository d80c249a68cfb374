// 包 store：PostgreSQL 数据访问层，提供记录源、批量导入与查询统计
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"payphone-api/internal/logger"
	"payphone-api/internal/payphone"
	"payphone-api/internal/telstra"
)

// importBatch：每个事务提交的行数
const importBatch = 500

// Store：数据库访问入口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Fetch：按 id 顺序读出全部公用电话，作为加载器的数据源
// 约束：id 顺序即记录集位置顺序；导入重跑不会改变已有行的 id
func (s *Store) Fetch(ctx context.Context) ([]payphone.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, latitude, longitude, postcode, address, state, number FROM _payphones ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []payphone.RawRecord
	for rows.Next() {
		var id int
		var lat, lon float64
		var pc, addr, state, number string
		if err := rows.Scan(&id, &lat, &lon, &pc, &addr, &state, &number); err != nil {
			return nil, err
		}
		out = append(out, payphone.RawRecord{
			payphone.FieldID:        id,
			payphone.FieldLatitude:  lat,
			payphone.FieldLongitude: lon,
			payphone.FieldPostcode:  pc,
			"address":               addr,
			"state":                 state,
			"number":                number,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_fetch_done", "records", len(out))
	return out, nil
}

// Import：批量写入，importBatch 行一提交，降低锁持有时间
// 约束：按唯一键 upsert，重复导入只更新附加字段与 import_id；返回写入行数
func (s *Store) Import(ctx context.Context, importID string, list []telstra.Payphone) (int, error) {
	logger.L().Info("db_import_begin", "import_id", importID, "records", len(list))
	if _, err := s.db.ExecContext(ctx, `INSERT INTO _payphone_imports(id, started_at) VALUES($1, now())`, importID); err != nil {
		return 0, err
	}
	count := 0
	for begin := 0; begin < len(list); begin += importBatch {
		end := begin + importBatch
		if end > len(list) {
			end = len(list)
		}
		n, err := s.importChunk(ctx, importID, list[begin:end])
		if err != nil {
			return count, fmt.Errorf("import rows %d-%d: %w", begin, end, err)
		}
		count += n
		logger.L().Debug("db_import_progress", "count", count)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE _payphone_imports SET finished_at=now(), records=$2 WHERE id=$1`, importID, count); err != nil {
		return count, err
	}
	logger.L().Info("db_import_done", "import_id", importID, "records", count)
	return count, nil
}

func (s *Store) importChunk(ctx context.Context, importID string, chunk []telstra.Payphone) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _payphones(latitude, longitude, address, state, postcode, number, cabinet_id, import_id, updated_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,now())
        ON CONFLICT (latitude, longitude, address, cabinet_id, number) DO UPDATE SET state=EXCLUDED.state, postcode=EXCLUDED.postcode, import_id=EXCLUDED.import_id, updated_at=now()`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, p := range chunk {
		if _, err := stmt.ExecContext(ctx, p.Latitude, p.Longitude, p.Address, p.State, p.Postcode, p.CLI, p.CabinetID, importID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunk), nil
}

// IncrStats：查询成功后递增总计与当日计数；visitor 为真时同时递增访客数
func (s *Store) IncrStats(ctx context.Context, visitor bool) error {
	_, _ = s.db.ExecContext(ctx, "UPDATE _payphone_stats_total SET total_queries=total_queries+1 WHERE id=1")
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _payphone_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_payphone_stats_daily.queries+1")
	if visitor {
		_, _ = s.db.ExecContext(ctx, "UPDATE _payphone_stats_total SET total_visitors=total_visitors+1 WHERE id=1")
		_, _ = s.db.ExecContext(ctx, "INSERT INTO _payphone_stats_daily(day, visitors) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET visitors=_payphone_stats_daily.visitors+1")
	}
	return nil
}

// Totals：累计与当日计数
type Totals struct {
	Total         int64 `json:"total"`
	Today         int64 `json:"today"`
	Visitors      int64 `json:"visitors"`
	VisitorsToday int64 `json:"visitors_today"`
}

// 约束：当日行不存在时当日计数为 0；其余查询错误原样返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, "SELECT total_queries, total_visitors FROM _payphone_stats_total WHERE id=1").Scan(&t.Total, &t.Visitors)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, "SELECT queries, visitors FROM _payphone_stats_daily WHERE day=current_date").Scan(&t.Today, &t.VisitorsToday)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return &t, nil
}

// LastImport：最近一次完成的导入；无记录时返回 nil
type ImportInfo struct {
	ID         string
	FinishedAt time.Time
	Records    int
}

func (s *Store) LastImport(ctx context.Context) (*ImportInfo, error) {
	var in ImportInfo
	err := s.db.QueryRowContext(ctx, `SELECT id, finished_at, records FROM _payphone_imports WHERE finished_at IS NOT NULL ORDER BY finished_at DESC LIMIT 1`).
		Scan(&in.ID, &in.FinishedAt, &in.Records)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}
