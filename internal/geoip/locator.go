// 包 geoip：访问者 IP 到坐标的粗定位（MaxMind City 库）
package geoip

import (
	"errors"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"payphone-api/internal/geo"
)

var ErrNoLocation = errors.New("geoip: no location for ip")

// Place：粗定位结果
type Place struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
}

// Locator：只读，可并发使用
type Locator struct {
	db *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Locator{db: db}, nil
}

func (l *Locator) Close() error { return l.db.Close() }

// Locate：解析 IP 并查询坐标
// 约束：私网地址或库中无坐标（0,0）时返回 ErrNoLocation
func (l *Locator) Locate(ip string) (Place, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Place{}, errors.New("geoip: invalid ip")
	}
	if parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return Place{}, ErrNoLocation
	}
	rec, err := l.db.City(parsed)
	if err != nil {
		return Place{}, err
	}
	lat, lon := rec.Location.Latitude, rec.Location.Longitude
	if (lat == 0 && lon == 0) || !geo.ValidLat(lat) || !geo.ValidLon(lon) {
		return Place{}, ErrNoLocation
	}
	return Place{Lat: lat, Lon: lon, City: rec.City.Names["en"], Country: rec.Country.IsoCode}, nil
}
