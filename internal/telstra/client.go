// 包 telstra：上游公用电话列表接口客户端
package telstra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"payphone-api/internal/geo"
	"payphone-api/internal/logger"
	"payphone-api/internal/metrics"
)

const (
	DefaultURL = "https://tapi.telstra.com/presentation/v1/tcom/geo/payphones/list"
	// PageSize：单页上限，超过 100 时上游会退回默认 5 条
	PageSize = 100
	// MaxFrom：分页起点上限，更大的偏移上游不再返回数据
	MaxFrom = 9000
	// LargeRadius：覆盖全国的搜索半径
	LargeRadius = 1000000000000000
)

// Point：搜索中心
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Region：命名搜索点
type Region struct {
	Name  string
	Point Point
}

// DefaultRegions：四个搜索点合起来可覆盖全国数据
var DefaultRegions = []Region{
	{Name: "JUNEE", Point: Point{Lat: -34.8709308, Lon: 147.5847095}},
	{Name: "MACKAY", Point: Point{Lat: -21.1690168, Lon: 149.0108144}},
	{Name: "ALICE", Point: Point{Lat: -23.6993435, Lon: 133.8749801}},
	{Name: "PERTH", Point: Point{Lat: -32.0390554, Lon: 115.6318991}},
}

// Payphone：上游返回的一部电话
type Payphone struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Address         string  `json:"address"`
	State           string  `json:"state"`
	Postcode        string  `json:"postcode"`
	PhoneAttributes any     `json:"phone_attributes,omitempty"`
	CabinetID       string  `json:"cabinet_id"`
	FNN             string  `json:"fnn"`
	CLI             string  `json:"cli"`
	Type            string  `json:"type"`
	Icon            string  `json:"icon"`
}

// Key：去重键，同一电话可能被多个搜索点返回
func (p Payphone) Key() string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "|" +
		strconv.FormatFloat(p.Longitude, 'f', -1, 64) + "|" +
		p.Address + "|" + p.CabinetID + "|" + p.CLI
}

type listRequest struct {
	Point      Point      `json:"point"`
	Radius     int64      `json:"radius"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Size int `json:"size"`
	From int `json:"from"`
}

type listResponse struct {
	Results []struct {
		Value []struct {
			FeatureList []feature `json:"featureList"`
		} `json:"value"`
	} `json:"results"`
}

type feature struct {
	Latitude        flexFloat       `json:"latitude"`
	Longitude       flexFloat       `json:"longitude"`
	Address         flexString      `json:"address"`
	State           flexString      `json:"state"`
	Postcode        flexString      `json:"postcode"`
	PhoneAttributes json.RawMessage `json:"phone_attributes"`
	CabinetID       flexString      `json:"cabinet_id"`
	FNN             flexString      `json:"fnn"`
	CLI             flexString      `json:"cli"`
	Type            flexString      `json:"type"`
	Icon            flexString      `json:"icon"`
}

// flexString：上游对邮编、号码等字段时而给数字时而给字符串
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(strings.TrimSpace(string(b)))
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = flexFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Client：列表接口客户端；HTTP 为空时使用 15s 超时的默认客户端
// Limiter 非空时每次请求前等待令牌，多个搜索点并行时共享同一上游配额
type Client struct {
	URL     string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// WithQPS：限制上游请求速率；qps<=0 时不限速
func (c *Client) WithQPS(qps float64) *Client {
	if qps > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
	return c
}

func NewClient(url string, hc *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{URL: url, HTTP: hc}
}

// ListPage：拉取一页
// 约束：请求头模拟官网前端，否则上游拒绝；非 2xx 返回错误并附带状态码
func (c *Client) ListPage(ctx context.Context, pt Point, from int) ([]Payphone, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(listRequest{Point: pt, Radius: LargeRadius, Pagination: pagination{Size: PageSize, From: from}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://www.telstra.com.au")
	req.Header.Set("Referer", "https://www.telstra.com.au/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	req.Header.Set("source", "tcom")

	t0 := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("fail").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.UpstreamDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		metrics.UpstreamRequestsTotal.WithLabelValues("fail").Inc()
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("telstra: status %d", resp.StatusCode)
	}
	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("fail").Inc()
		return nil, fmt.Errorf("telstra: decode: %w", err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("ok").Inc()
	// 仅取第一组结果，与上游前端一致
	var out []Payphone
	if len(lr.Results) > 0 {
		for _, v := range lr.Results[0].Value {
			for _, f := range v.FeatureList {
				p := f.toPayphone()
				if !geo.ValidLat(p.Latitude) || !geo.ValidLon(p.Longitude) {
					logger.L().Debug("telstra_feature_skip", "address", p.Address, "reason", "bad_coordinate")
					continue
				}
				out = append(out, p)
			}
		}
	}
	logger.L().Debug("telstra_page", "lat", pt.Lat, "lon", pt.Lon, "from", from, "count", len(out), "duration_ms", time.Since(t0).Milliseconds())
	return out, nil
}

func (f feature) toPayphone() Payphone {
	p := Payphone{
		Latitude:  float64(f.Latitude),
		Longitude: float64(f.Longitude),
		Address:   string(f.Address),
		State:     string(f.State),
		Postcode:  string(f.Postcode),
		CabinetID: string(f.CabinetID),
		FNN:       string(f.FNN),
		CLI:       string(f.CLI),
		Type:      string(f.Type),
		Icon:      string(f.Icon),
	}
	if len(f.PhoneAttributes) > 0 && string(f.PhoneAttributes) != "null" {
		var attrs any
		if json.Unmarshal(f.PhoneAttributes, &attrs) == nil {
			p.PhoneAttributes = attrs
		}
	}
	return p
}
