package ingest

import (
	"context"
	"os"
	"strconv"
	"time"

	"payphone-api/internal/logger"
)

// DefaultZone：上游数据按悉尼时间每周更新
const DefaultZone = "Australia/Sydney"

// nextMondayAt：now 之后第一个周一 hour 整点（loc 时区）
// 约束：当天为周一且已过 hour 时顺延到下周一
func nextMondayAt(now time.Time, loc *time.Location, hour int) time.Time {
	now = now.In(loc)
	for i := 0; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		if d.Weekday() == time.Monday {
			t := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
			if t.After(now) {
				return t
			}
		}
	}
	d := now.AddDate(0, 0, 7)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}

// StartWeekly：每周一 INGEST_HOUR 点（默认 3 点，悉尼时间）执行 job
// 背景：错误只记日志，下周照常调度；ctx 取消后协程退出
func StartWeekly(ctx context.Context, job func(context.Context) error) {
	l := logger.L()
	loc, err := time.LoadLocation(DefaultZone)
	if err != nil {
		l.Warn("ingest_zone_fallback", "zone", DefaultZone, "err", err)
		loc = time.UTC
	}
	hour := 3
	if h := os.Getenv("INGEST_HOUR"); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n >= 0 && n < 24 {
			hour = n
		}
	}
	next := nextMondayAt(time.Now(), loc, hour)
	l.Info("ingest_scheduled", "next", next)
	go func() {
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			l.Info("ingest_start", "at", next)
			if err := job(ctx); err != nil {
				l.Error("ingest_error", "err", err)
			} else {
				l.Info("ingest_done")
			}
			next = nextMondayAt(time.Now(), loc, hour)
		}
	}()
}
