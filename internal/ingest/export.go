package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"payphone-api/internal/telstra"
)

var ErrNoData = errors.New("ingest: upstream returned no payphones")

// row：导出 JSON 的行结构，也是 loader.FileSource 读取的格式
type row struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	State     string  `json:"state,omitempty"`
	Postcode  string  `json:"postcode"`
	Number    string  `json:"number"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FilterState：按州筛选；州字段在筛选结果里省略
func FilterState(list []telstra.Payphone, state string) []telstra.Payphone {
	out := make([]telstra.Payphone, 0)
	for _, p := range list {
		if p.State == state {
			p.State = ""
			out = append(out, p)
		}
	}
	return out
}

// EncodeJSON：扁平数组，4 空格缩进
func EncodeJSON(w io.Writer, list []telstra.Payphone) error {
	rows := make([]row, 0, len(list))
	for _, p := range list {
		rows = append(rows, row{Latitude: p.Latitude, Longitude: p.Longitude, Address: p.Address, State: p.State, Postcode: p.Postcode, Number: p.CLI})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(rows)
}

// EncodeGeoJSON：FeatureCollection，坐标顺序为 [经度, 纬度]
func EncodeGeoJSON(w io.Writer, list []telstra.Payphone) error {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(list))}
	for _, p := range list {
		props := map[string]any{"address": p.Address, "postcode": p.Postcode, "number": p.CLI}
		if p.State != "" {
			props["state"] = p.State
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geometry{Type: "Point", Coordinates: [2]float64{p.Longitude, p.Latitude}},
			Properties: props,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(fc)
}

// WriteFiles：在 dir 下写出全量与指定州的 JSON / GeoJSON，返回写出的文件路径
// 文件名：payphones_data.json、payphones_data.geojson、payphones_data_<state小写>.json/.geojson
func WriteFiles(dir string, list []telstra.Payphone, states ...string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	write := func(name string, enc func(io.Writer, []telstra.Payphone) error, l []telstra.Payphone) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := enc(f, l); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}
	if err := write("payphones_data.json", EncodeJSON, list); err != nil {
		return written, err
	}
	if err := write("payphones_data.geojson", EncodeGeoJSON, list); err != nil {
		return written, err
	}
	for _, st := range states {
		sub := FilterState(list, st)
		suffix := strings.ToLower(st)
		if err := write("payphones_data_"+suffix+".json", EncodeJSON, sub); err != nil {
			return written, err
		}
		if err := write("payphones_data_"+suffix+".geojson", EncodeGeoJSON, sub); err != nil {
			return written, err
		}
	}
	return written, nil
}
