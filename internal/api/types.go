package api

import (
	"payphone-api/internal/payphone"
	"payphone-api/internal/query"
	"payphone-api/internal/store"
)

// 文档注释：最近公用电话的返回结构
// 背景：record 为扁平记录（id/latitude/longitude/postcode 加原始附加字段）；origin 指明坐标来源（query 或 geoip）。
// 约束：字段稳定；distance_km 为大圆距离（千米）。
type nearestResult struct {
	Record     payphone.Record `json:"record"`
	DistanceKm float64         `json:"distance_km"`
	Geohash    string          `json:"geohash"`
	Origin     string          `json:"origin"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
}

// 按邮编查询的返回结构；未知邮编时 records 为空数组
type postcodeResult struct {
	Postcode string            `json:"postcode"`
	Count    int               `json:"count"`
	Records  []payphone.Record `json:"records"`
}

type statsResult struct {
	Engine     query.Stats   `json:"engine"`
	Generation uint64        `json:"generation"`
	Totals     *store.Totals `json:"totals,omitempty"`
}

type errorResult struct {
	Error string `json:"error"`
}

// cachedNearest：结果缓存中保存的内容
type cachedNearest struct {
	Record     payphone.Record `json:"record"`
	DistanceKm float64         `json:"distance_km"`
}
