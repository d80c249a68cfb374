// 包 api：集中注册 HTTP API 路由，主入口只负责装配依赖
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"payphone-api/internal/geo"
	"payphone-api/internal/geoip"
	"payphone-api/internal/logger"
	"payphone-api/internal/metrics"
	"payphone-api/internal/query"
	"payphone-api/internal/store"
)

var sydney = loadZone("Australia/Sydney")

func loadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Locator：IP 粗定位，由 geoip.Locator 实现
type Locator interface {
	Locate(ip string) (geoip.Place, error)
}

// Deps：路由依赖；除 Holder 外均可为空，为空时对应能力降级
// AdminToken 为空时重载接口始终拒绝
type Deps struct {
	Holder     *query.Holder
	Store      *store.Store
	Redis      *redis.Client
	GeoIP      Locator
	Reload     func(ctx context.Context) error
	AdminToken string
	ResultTTL  time.Duration
}

// BuildRoutes：独立 ServeMux，便于在主入口挂载到 API 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	results := newResultCache(d.Redis, d.ResultTTL)
	mux := http.NewServeMux()

	mux.HandleFunc("/nearest", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		e, gen := d.Holder.Load()
		if e == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResult{Error: "dataset not loaded"})
			return
		}
		lat, lon, origin, err := resolvePoint(r, d.GeoIP)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResult{Error: err.Error()})
			return
		}
		t0 := time.Now()
		var key string
		if results != nil {
			key = nearestKey(results.scope(e, gen), lat, lon)
		}
		hit, ok := lookupCached(ctx, results, key)
		if !ok {
			rec, km, err := e.Nearest(lat, lon)
			switch {
			case errors.Is(err, query.ErrEmptyStore):
				metrics.EmptyResultsTotal.WithLabelValues("nearest").Inc()
				writeJSON(w, http.StatusNotFound, errorResult{Error: err.Error()})
				return
			case err != nil:
				writeJSON(w, http.StatusBadRequest, errorResult{Error: err.Error()})
				return
			}
			hit = cachedNearest{Record: rec, DistanceKm: km}
			if results != nil {
				results.set(ctx, key, hit)
			}
		}
		observe("nearest", t0)
		countQuery(ctx, d, r)
		writeJSON(w, http.StatusOK, nearestResult{
			Record:     hit.Record,
			DistanceKm: hit.DistanceKm,
			Geohash:    geo.EncodeGeohash(hit.Record.Latitude, hit.Record.Longitude, 9),
			Origin:     origin,
			Lat:        lat,
			Lon:        lon,
		})
	})

	mux.HandleFunc("/postcode", func(w http.ResponseWriter, r *http.Request) {
		e, _ := d.Holder.Load()
		if e == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResult{Error: "dataset not loaded"})
			return
		}
		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			writeJSON(w, http.StatusBadRequest, errorResult{Error: "code is required"})
			return
		}
		t0 := time.Now()
		recs := e.ByPostcode(code)
		observe("postcode", t0)
		if len(recs) == 0 {
			metrics.EmptyResultsTotal.WithLabelValues("postcode").Inc()
		}
		countQuery(r.Context(), d, r)
		writeJSON(w, http.StatusOK, postcodeResult{Postcode: code, Count: len(recs), Records: recs})
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		var res statsResult
		if e, gen := d.Holder.Load(); e != nil {
			res.Engine = e.Stats()
			res.Generation = gen
		}
		if d.Store != nil {
			t, err := d.Store.GetTotals(r.Context())
			if err != nil {
				logger.L().Error("stats_totals_error", "err", err)
			} else {
				res.Totals = t
			}
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		t := r.Header.Get("x-admin-token")
		if d.AdminToken == "" || t != d.AdminToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if d.Reload == nil {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		if err := d.Reload(r.Context()); err != nil {
			logger.L().Error("reload_error", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResult{Error: err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// resolvePoint：lat/lon 都缺省时按访问者 IP 粗定位，否则两者都必须合法
func resolvePoint(r *http.Request, loc Locator) (float64, float64, string, error) {
	q := r.URL.Query()
	latS, lonS := q.Get("lat"), q.Get("lon")
	if latS == "" && lonS == "" {
		if loc == nil {
			return 0, 0, "", errors.New("lat and lon are required")
		}
		p, err := loc.Locate(clientIP(r, true))
		if err != nil {
			return 0, 0, "", errors.New("lat and lon are required: " + err.Error())
		}
		return p.Lat, p.Lon, "geoip", nil
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil || !geo.ValidLat(lat) {
		return 0, 0, "", errors.New("lat must be a number within ±90")
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil || !geo.ValidLon(lon) {
		return 0, 0, "", errors.New("lon must be a number within ±180")
	}
	return lat, lon, "query", nil
}

func observe(kind string, t0 time.Time) {
	metrics.QueriesTotal.WithLabelValues(kind).Inc()
	metrics.QueryDurationMs.WithLabelValues(kind).Observe(float64(time.Since(t0).Microseconds()) / 1000)
}

// countQuery：写入 Postgres 查询计数；访客去重依赖 Redis，无 Redis 时只计查询数
func countQuery(ctx context.Context, d Deps, r *http.Request) {
	if d.Store == nil {
		return
	}
	visitor := d.Redis != nil && firstVisitToday(ctx, d.Redis, clientIP(r, false), time.Now())
	_ = d.Store.IncrStats(ctx, visitor)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
