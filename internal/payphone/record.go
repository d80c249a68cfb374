// 包 payphone：公用电话记录与只读记录集
package payphone

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"payphone-api/internal/geo"
)

// 保留字段名：其余字段全部进入 Payload
const (
	FieldID        = "id"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldPostcode  = "postcode"
)

// RawRecord：未经校验的一行输入（JSON 对象解码结果、数据库行或上游接口字段）
type RawRecord map[string]any

// Record：一部公用电话
// 约束：加载后不可变；Payload 仅承载地址、州、号码等不参与索引的字段
type Record struct {
	ID        int
	Latitude  float64
	Longitude float64
	Postcode  string
	Payload   map[string]any
}

// MalformedRecordError：输入行不合法，整个加载失败
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: %s %s", e.Index, e.Field, e.Reason)
}

// ParseRecord：校验并转换单行
// 约束：经纬度可为数值或数值文本，缺失/越界/NaN 均拒绝；邮编必须是字符串；id 缺失时取 defaultID
func ParseRecord(raw RawRecord, index int, defaultID int) (Record, error) {
	var r Record
	lat, err := coord(raw, FieldLatitude, index, geo.ValidLat, "outside ±90")
	if err != nil {
		return r, err
	}
	lon, err := coord(raw, FieldLongitude, index, geo.ValidLon, "outside ±180")
	if err != nil {
		return r, err
	}
	pc, ok := raw[FieldPostcode].(string)
	if !ok {
		return r, &MalformedRecordError{Index: index, Field: FieldPostcode, Reason: fmt.Sprintf("is %T, want string", raw[FieldPostcode])}
	}
	id := defaultID
	if v, present := raw[FieldID]; present && v != nil {
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return r, &MalformedRecordError{Index: index, Field: FieldID, Reason: "is not an integer"}
		}
		id = int(f)
	}
	r = Record{ID: id, Latitude: lat, Longitude: lon, Postcode: pc}
	for k, v := range raw {
		switch k {
		case FieldID, FieldLatitude, FieldLongitude, FieldPostcode:
			continue
		}
		if r.Payload == nil {
			r.Payload = make(map[string]any, len(raw))
		}
		r.Payload[k] = jsonValue(v)
	}
	return r, nil
}

// jsonValue：数值统一为 float64，与 JSON 解码结果同型，经缓存往返后逐字段相等
func jsonValue(v any) any {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, json.Number:
		if f, ok := toFloat(x); ok {
			return f
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}

func coord(raw RawRecord, field string, index int, valid func(float64) bool, rangeMsg string) (float64, error) {
	v, present := raw[field]
	if !present || v == nil {
		return 0, &MalformedRecordError{Index: index, Field: field, Reason: "is absent"}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, &MalformedRecordError{Index: index, Field: field, Reason: fmt.Sprintf("is %T, want number", v)}
	}
	if !valid(f) {
		return 0, &MalformedRecordError{Index: index, Field: field, Reason: rangeMsg}
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// MarshalJSON：扁平对象，字段顺序固定（id, latitude, longitude, postcode, 其后 payload 键按字典序）
// 约束：与 ParseRecord 互逆，缓存与接口响应共用此编码
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(k string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(vb)
		return nil
	}
	_ = write(FieldID, r.ID)
	_ = write(FieldLatitude, r.Latitude)
	_ = write(FieldLongitude, r.Longitude)
	_ = write(FieldPostcode, r.Postcode)
	keys := make([]string, 0, len(r.Payload))
	for k := range r.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, r.Payload[k]); err != nil {
			return nil, fmt.Errorf("payload %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw RawRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	rec, err := ParseRecord(raw, 0, 0)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// PayloadString：读取字符串型附加字段，缺失或类型不符返回空串
func (r Record) PayloadString(k string) string {
	if s, ok := r.Payload[k].(string); ok {
		return s
	}
	return ""
}
